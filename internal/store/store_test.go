package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examiz/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleQuestion(content, kp string) session.Question {
	return session.Question{
		Content:        content,
		Options:        session.Options{{Key: "A", Text: "one"}, {Key: "B", Text: "two"}, {Key: "C", Text: "three"}},
		CorrectAnswer:  "B",
		Explanation:    "two is right",
		KnowledgePoint: kp,
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestQuestions_SaveDeduplicatesByHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Questions()

	q := sampleQuestion("会議は__始まった。", "grammar")
	saved, inserted, err := repo.Save(ctx, []session.Question{q, sampleQuestion("other", "vocab")})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID)

	// Same content with options in another order hashes the same.
	reordered := q
	reordered.Options = session.Options{{Key: "C", Text: "three"}, {Key: "A", Text: "one"}, {Key: "B", Text: "two"}}
	again, inserted, err := repo.Save(ctx, []session.Question{reordered})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, saved[0].ID, again[0].ID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.Get(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, got.Options.Keys())
	assert.Equal(t, "B", got.CorrectAnswer)
}

func TestQuestions_DeleteAndFavorite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Questions()

	saved, _, err := repo.Save(ctx, []session.Question{sampleQuestion("q1", "grammar")})
	require.NoError(t, err)
	id := saved[0].ID

	fav, err := repo.ToggleFavorite(ctx, id)
	require.NoError(t, err)
	assert.True(t, fav)
	favs, err := repo.List(ctx, QuestionFilter{FavoritesOnly: true})
	require.NoError(t, err)
	assert.Len(t, favs, 1)

	require.NoError(t, s.Attempts().Record(ctx, Attempt{QuestionID: id, SelectedAnswer: "A"}))
	require.NoError(t, repo.Delete(ctx, id))

	_, err = repo.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)
	assert.True(t, errors.Is(repo.Delete(ctx, id), ErrNotFound))

	_, err = repo.ToggleFavorite(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))

	attempts, err := s.Attempts().ForQuestion(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, attempts, "attempts should cascade with the question")
}

func TestQuestions_NeverCorrectAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Questions()

	saved, _, err := repo.Save(ctx, []session.Question{
		sampleQuestion("q1", "grammar"),
		sampleQuestion("q2", "grammar"),
		sampleQuestion("q3", "vocab"),
	})
	require.NoError(t, err)

	require.NoError(t, s.Attempts().Record(ctx, Attempt{QuestionID: saved[0].ID, SelectedAnswer: "B", IsCorrect: true}))
	require.NoError(t, s.Attempts().Record(ctx, Attempt{QuestionID: saved[1].ID, SelectedAnswer: "A"}))

	fresh, err := repo.NeverCorrect(ctx, 10, []int64{saved[2].ID})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, saved[1].ID, fresh[0].ID)

	stats, err := repo.KnowledgePointStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, KnowledgePointStat{Name: "grammar", Questions: 2, Unanswered: 0, Attempts: 2, Correct: 1}, stats[0])
	assert.Equal(t, KnowledgePointStat{Name: "vocab", Questions: 1, Unanswered: 1}, stats[1])
	assert.InDelta(t, 0.5, stats[0].Accuracy(), 1e-9)

	byPoint, err := repo.InKnowledgePoints(ctx, []string{"vocab"}, 5)
	require.NoError(t, err)
	require.Len(t, byPoint, 1)
	assert.Equal(t, "q3", byPoint[0].Content)

	ordered, err := repo.ByIDs(ctx, []int64{saved[2].ID, saved[0].ID})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, saved[2].ID, ordered[0].ID)
}

func TestReviews_PutDueAndUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	saved, _, err := s.Questions().Save(ctx, []session.Question{sampleQuestion("q1", "g"), sampleQuestion("q2", "g")})
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo := s.Reviews()
	require.NoError(t, repo.Put(ctx, ReviewItem{QuestionID: saved[0].ID, IntervalDays: 1, EaseFactor: 250, NextReviewAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Put(ctx, ReviewItem{QuestionID: saved[1].ID, IntervalDays: 3, EaseFactor: 250, NextReviewAt: now.Add(time.Hour)}))

	due, err := repo.Due(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, saved[0].ID, due[0].QuestionID)

	require.NoError(t, repo.Put(ctx, ReviewItem{QuestionID: saved[0].ID, ReviewCount: 2, IntervalDays: 6, EaseFactor: 230, NextReviewAt: now.Add(6 * 24 * time.Hour), LastReviewedAt: now}))
	it, err := repo.Get(ctx, saved[0].ID)
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, 6, it.IntervalDays)
	assert.Equal(t, 230, it.EaseFactor)
	assert.True(t, it.LastReviewedAt.Equal(now))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	missing, err := repo.Get(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessions_PutGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Sessions()

	got, err := repo.Get(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, got)

	correct := true
	snap := session.Snapshot{
		Topic:        "N1",
		Questions:    []session.Question{{ID: 7, Content: "q", Options: session.Options{{Key: "B", Text: "b"}, {Key: "A", Text: "a"}}, KnowledgePoint: "g"}},
		Results:      []*session.AnswerResult{{QuestionID: 7, SelectedAnswer: "A", IsCorrect: &correct}},
		CurrentIndex: 0,
	}
	stamp, err := repo.Put(ctx, "default", snap)
	require.NoError(t, err)

	got, err = repo.Get(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "N1", got.Topic)
	assert.Equal(t, []string{"B", "A"}, got.Questions[0].Options.Keys())
	assert.True(t, got.Results[0].Correct())
	assert.True(t, got.UpdatedAt.Equal(stamp))

	require.NoError(t, repo.Delete(ctx, "default"))
	require.NoError(t, repo.Delete(ctx, "default"))
	got, err = repo.Get(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessions_MalformedPayload(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.DB().Exec(`INSERT INTO quiz_sessions (session_key, topic, questions_json, results_json, current_index, updated_at)
		VALUES ('k', 't', '{not json', '[]', 0, '')`)
	require.NoError(t, err)

	_, err = s.Sessions().Get(ctx, "k")
	assert.True(t, errors.Is(err, session.ErrMalformedState), "err = %v", err)
}

func TestHistory_AppendLogUpdatesStudyRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.History()
	day := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AppendLog(ctx, SessionLog{ID: "a", Topic: "t", Answered: 3, Correct: 2, FinishedAt: day}))
	require.NoError(t, repo.AppendLog(ctx, SessionLog{ID: "b", Topic: "t", Answered: 2, Correct: 2, FinishedAt: day.Add(time.Hour)}))

	logs, err := repo.Logs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "b", logs[0].ID)

	recs, err := repo.StudyRecords(ctx, 7)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StudyRecord{Date: "2026-05-01", QuestionsAnswered: 5, CorrectAnswers: 4, Sessions: 2}, recs[0])
}

func TestEvents_AppendQueryAndUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	for i, purpose := range []string{"question-gen", "question-gen", "other"} {
		require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider:     "mock",
			Model:        "mock-model",
			Purpose:      purpose,
			InputTokens:  10 * (i + 1),
			OutputTokens: 5,
			LatencyMs:    100,
			Success:      true,
			RequestBody:  "{}",
		}))
	}

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Greater(t, events[0].Sequence, events[1].Sequence)

	e, err := repo.GetLLMEvent(ctx, events[0].ID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "{}", e.RequestBody)

	others, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "other"})
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, 30, others[0].InputTokens)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, "question-gen", byPurpose[0].Purpose)
	assert.Equal(t, 2, byPurpose[0].Calls)
	assert.Equal(t, 30, byPurpose[0].InputTokens)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, 3, byModel[0].Calls)
}

func TestSequenceCounter_Monotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		n, err := s.seq.Next(ctx)
		require.NoError(t, err)
		if n <= last {
			t.Fatalf("sequence %d not greater than %d", n, last)
		}
		last = n
	}
}
