package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examiz/internal/questiongen"
	"github.com/abhisek/examiz/internal/remote"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeGenerator returns a fixed set, or err.
type fakeGenerator struct {
	mu        sync.Mutex
	questions []session.Question
	err       error
	inputs    []questiongen.Input
}

func (g *fakeGenerator) Generate(_ context.Context, in questiongen.Input) (*questiongen.Batch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, in)
	if g.err != nil {
		return nil, g.err
	}
	return &questiongen.Batch{
		Questions: g.questions,
		Rejected:  []*questiongen.ValidationError{{Validator: "structural", Message: "too few options"}},
	}, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inputs)
}

func question(content, kp string) session.Question {
	return session.Question{
		Content:        content,
		Options:        session.Options{{Key: "A", Text: "yes"}, {Key: "B", Text: "no"}},
		CorrectAnswer:  "A",
		KnowledgePoint: kp,
	}
}

type testEnv struct {
	store   *store.Store
	handler http.Handler
	gen     *fakeGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gen := &fakeGenerator{questions: []session.Question{question("gen 1", "keigo"), question("gen 2", "keigo")}}
	srv := New(st, WithGenerator(gen), WithClock(func() time.Time { return testNow }))
	return &testEnv{store: st, handler: srv.Handler(), gen: gen}
}

func (e *testEnv) seed(t *testing.T, qs ...session.Question) []session.Question {
	t.Helper()
	saved, _, err := e.store.Questions().Save(context.Background(), qs)
	require.NoError(t, err)
	return saved
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t)
	path := "/api/quiz/session/default"

	w := e.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[remote.SessionResponse](t, w).Exists)

	snap := session.Snapshot{
		Topic:        "particles",
		Questions:    []session.Question{{ID: 1, Content: "q", Options: session.Options{{Key: "A", Text: "a"}}, KnowledgePoint: "k"}},
		Results:      []*session.AnswerResult{nil},
		CurrentIndex: 0,
	}
	w = e.do(t, http.MethodPut, path, snap)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[remote.PutSessionResponse](t, w).UpdatedAt.Equal(testNow))

	w = e.do(t, http.MethodGet, path, nil)
	got := decode[remote.SessionResponse](t, w)
	assert.True(t, got.Exists)
	assert.Equal(t, "particles", got.Topic)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(testNow))

	w = e.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, path, nil)
	assert.False(t, decode[remote.SessionResponse](t, w).Exists)
}

func TestPutSession_Rejects(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name string
		body any
	}{
		{"no questions", session.Snapshot{Topic: "t"}},
		{"not json", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodPut, "/api/quiz/session/k", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSubmitAndReviewQueue(t *testing.T) {
	e := newTestEnv(t)
	q := e.seed(t, question("is it?", "basics"))[0]

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/questions/%d/submit", q.ID), remote.SubmitRequest{SelectedAnswer: "b"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[session.GradeResult](t, w)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, "A", res.CorrectAnswer)

	w = e.do(t, http.MethodGet, "/api/wrong-questions", nil)
	items := decode[remote.WrongQuestionsResponse](t, w).Items
	require.Len(t, items, 1)
	assert.Equal(t, q.ID, items[0].Question.ID)
	assert.Equal(t, 1, items[0].IntervalDays)

	w = e.do(t, http.MethodGet, "/api/wrong-questions/review", nil)
	qs := decode[remote.QuestionsResponse](t, w).Questions
	require.Len(t, qs, 1)
	assert.True(t, qs[0].IsReview)

	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/questions/%d/review", q.ID), remote.ReviewRequest{Quality: 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 6, decode[remote.ReviewResponse](t, w).IntervalDays)
}

func TestQuestionErrors(t *testing.T) {
	e := newTestEnv(t)
	q := e.seed(t, question("unqueued", "basics"))[0]

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad id", http.MethodPost, "/api/questions/abc/submit", remote.SubmitRequest{SelectedAnswer: "A"}, http.StatusBadRequest},
		{"missing question", http.MethodPost, "/api/questions/999/submit", remote.SubmitRequest{SelectedAnswer: "A"}, http.StatusNotFound},
		{"empty answer", http.MethodPost, fmt.Sprintf("/api/questions/%d/submit", q.ID), remote.SubmitRequest{}, http.StatusBadRequest},
		{"bad quality", http.MethodPost, fmt.Sprintf("/api/questions/%d/review", q.ID), remote.ReviewRequest{Quality: 9}, http.StatusBadRequest},
		{"review not queued", http.MethodPost, fmt.Sprintf("/api/questions/%d/review", q.ID), remote.ReviewRequest{Quality: 4}, http.StatusNotFound},
		{"favorite missing", http.MethodPost, "/api/questions/999/favorite", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[remote.ErrorResponse](t, w).Error)
		})
	}
}

func TestFavoriteAndDelete(t *testing.T) {
	e := newTestEnv(t)
	q := e.seed(t, question("fav", "basics"))[0]
	path := fmt.Sprintf("/api/questions/%d", q.ID)

	w := e.do(t, http.MethodPost, path+"/favorite", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[remote.FavoriteResponse](t, w).IsFavorite)

	w = e.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFinishAndSessionLogs(t *testing.T) {
	e := newTestEnv(t)
	yes, no := true, false
	w := e.do(t, http.MethodPost, "/api/quiz/finish", remote.FinishRequest{
		Topic: "N2",
		SessionData: []session.AnswerResult{
			{QuestionID: 1, SelectedAnswer: "A", IsCorrect: &yes},
			{QuestionID: 2, SelectedAnswer: "B", IsCorrect: &no},
			{QuestionID: 3, Skipped: true},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fin := decode[remote.FinishResponse](t, w)
	assert.Equal(t, 2, fin.Answered)
	assert.Equal(t, 1, fin.Correct)
	assert.NotEmpty(t, fin.ID)

	w = e.do(t, http.MethodGet, "/api/stats/sessions?limit=5", nil)
	logs := decode[remote.SessionLogsResponse](t, w).Sessions
	require.Len(t, logs, 1)
	assert.Equal(t, "N2", logs[0].Topic)
}

func TestStudyAndGapTest(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, question("s1", "a"), question("s2", "b"))

	w := e.do(t, http.MethodGet, "/api/quiz/study?new=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[remote.QuestionsResponse](t, w).Questions, 1)

	w = e.do(t, http.MethodGet, "/api/quiz/gap-test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[remote.QuestionsResponse](t, w).Questions, 2)
}

func TestGenerate(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, question("already here", "keigo"))

	w := e.do(t, http.MethodPost, "/api/quiz/generate", remote.GenerateRequest{Topic: " keigo ", NumQuestions: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[remote.GenerateResponse](t, w)
	assert.Equal(t, 2, res.Added)
	assert.Len(t, res.Questions, 2)
	assert.NotZero(t, res.Questions[0].ID)
	assert.Len(t, res.Rejected, 1)

	require.Len(t, e.gen.inputs, 1)
	in := e.gen.inputs[0]
	assert.Equal(t, "keigo", in.Topic)
	assert.Equal(t, []string{"already here"}, in.Prior)
	assert.Len(t, in.Known, 1)

	// The same set again is deduplicated by the bank.
	w = e.do(t, http.MethodPost, "/api/quiz/generate", remote.GenerateRequest{Topic: "keigo", NumQuestions: 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[remote.GenerateResponse](t, w).Added)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("blank topic", func(t *testing.T) {
		e := newTestEnv(t)
		w := e.do(t, http.MethodPost, "/api/quiz/generate", remote.GenerateRequest{Topic: "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("nothing valid", func(t *testing.T) {
		e := newTestEnv(t)
		e.gen.err = questiongen.ErrNoValidQuestions
		w := e.do(t, http.MethodPost, "/api/quiz/generate", remote.GenerateRequest{Topic: "x"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
	t.Run("not configured", func(t *testing.T) {
		st, err := store.Open(filepath.Join(t.TempDir(), "s.db"))
		require.NoError(t, err)
		defer st.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/quiz/generate", bytes.NewBufferString(`{"topic":"x"}`))
		w := httptest.NewRecorder()
		New(st).Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAutoGenRunOnce(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, question("k1", "keigo"))

	ag := NewAutoGen(e.gen, e.store, nil)
	added, err := ag.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	require.Len(t, e.gen.inputs, 1)
	assert.Equal(t, "keigo", e.gen.inputs[0].Topic)
	assert.Equal(t, DefaultAutoGenCount, e.gen.inputs[0].Count)

	// Stocked points are left alone.
	ag.Threshold = 1
	added, err = ag.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Len(t, e.gen.inputs, 1)
}

func TestAutoGenRun_NonPositiveInterval(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, question("k1", "keigo"))

	ag := NewAutoGen(e.gen, e.store, nil)
	ag.Interval = 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ag.Run(ctx)
	}()
	require.Eventually(t, func() bool { return e.gen.calls() > 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
