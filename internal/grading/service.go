// Package grading checks submitted answers against the question bank and
// keeps the review queue, attempt history and finished-session log in step.
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/spacedrep"
	"github.com/abhisek/examiz/internal/store"
)

// DefaultExplanation is returned for questions stored without one.
const DefaultExplanation = "No explanation available."

// Pull sizes used when a caller passes zero.
const (
	DefaultReviewLimit = 10
	DefaultNewLimit    = 5
	DefaultGapLimit    = 10
	DefaultGapPoints   = 5
)

var (
	// ErrInvalidQuality is returned for a quality outside 0..5.
	ErrInvalidQuality = errors.New("quality must be between 0 and 5")

	// ErrEmptyAnswer is returned when no option was selected.
	ErrEmptyAnswer = errors.New("selected answer is empty")
)

// Service grades answers and assembles study sets.
type Service struct {
	questions store.QuestionRepo
	history   store.HistoryRepo
	scheduler *spacedrep.Scheduler
	answers   func(ctx context.Context, fn func(store.AnswerTx) error) error
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a grading service over the store's repositories.
func NewService(s *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		questions: s.Questions(),
		history:   s.History(),
		scheduler: spacedrep.NewScheduler(s.Reviews()),
		answers:   s.RecordAnswer,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Scheduler returns the review scheduler.
func (s *Service) Scheduler() *spacedrep.Scheduler {
	return s.scheduler
}

// Submit grades one answer, records the attempt and updates the review
// queue. When quality is given it drives the queue update in place of the
// correct/wrong rule.
func (s *Service) Submit(ctx context.Context, questionID int64, selected string, quality *int) (*session.GradeResult, error) {
	selected = strings.ToUpper(strings.TrimSpace(selected))
	if selected == "" {
		return nil, ErrEmptyAnswer
	}
	if quality != nil && !validQuality(*quality) {
		return nil, ErrInvalidQuality
	}

	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	correct := selected == strings.ToUpper(q.CorrectAnswer)
	attempt := store.Attempt{
		QuestionID:     questionID,
		SelectedAnswer: selected,
		IsCorrect:      correct,
		AttemptedAt:    now,
	}
	if quality != nil {
		attempt.Quality = *quality
	}
	// The attempt and the queue update land together, so a retried
	// submission after a failure is not counted twice.
	var rs *spacedrep.ReviewState
	err = s.answers(ctx, func(tx store.AnswerTx) error {
		if err := tx.Attempts.Record(ctx, attempt); err != nil {
			return fmt.Errorf("record attempt: %w", err)
		}
		var rerr error
		rs, rerr = spacedrep.NewScheduler(tx.Reviews).RecordAnswer(ctx, questionID, correct, quality, now)
		if rerr != nil {
			return fmt.Errorf("update review queue: %w", rerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rs != nil {
		s.logger.Debug("review scheduled", "question_id", questionID,
			"interval_days", rs.IntervalDays, "ease", rs.EaseFactor)
	}

	res := &session.GradeResult{
		IsCorrect:       correct,
		CorrectAnswer:   q.CorrectAnswer,
		Explanation:     q.Explanation,
		MemorizationTip: q.MemorizationTip,
	}
	if res.Explanation == "" {
		res.Explanation = DefaultExplanation
	}
	return res, nil
}

// Review applies a recall quality to a queued question.
func (s *Service) Review(ctx context.Context, questionID int64, quality int) (*spacedrep.ReviewState, error) {
	if !validQuality(quality) {
		return nil, ErrInvalidQuality
	}
	return s.scheduler.RecordQuality(ctx, questionID, quality, s.now())
}

// Finish stores the log of a completed session. Skipped and unanswered
// results are kept in the log but not counted as answered.
func (s *Service) Finish(ctx context.Context, topic string, results []session.AnswerResult) (*store.SessionLog, error) {
	log := store.SessionLog{
		ID:         uuid.NewString(),
		Topic:      topic,
		Results:    results,
		FinishedAt: s.now(),
	}
	if log.Topic == "" {
		log.Topic = session.DefaultTopic
	}
	for i := range results {
		r := &results[i]
		if !r.Answered() {
			continue
		}
		log.Answered++
		if r.Correct() {
			log.Correct++
		}
	}
	if err := s.history.AppendLog(ctx, log); err != nil {
		return nil, err
	}
	s.logger.Info("session finished", "id", log.ID, "topic", log.Topic,
		"answered", log.Answered, "correct", log.Correct)
	return &log, nil
}

// Study returns due reviews, most overdue first, followed by questions
// that have never been answered correctly.
func (s *Service) Study(ctx context.Context, reviewLimit, newLimit int) ([]session.Question, error) {
	if reviewLimit <= 0 {
		reviewLimit = DefaultReviewLimit
	}
	if newLimit <= 0 {
		newLimit = DefaultNewLimit
	}

	reviews, err := s.reviewQuestions(ctx, reviewLimit, true)
	if err != nil {
		return nil, err
	}
	exclude := make([]int64, len(reviews))
	for i, q := range reviews {
		exclude[i] = q.ID
	}
	fresh, err := s.questions.NeverCorrect(ctx, newLimit, exclude)
	if err != nil {
		return nil, fmt.Errorf("new questions: %w", err)
	}
	return append(reviews, fresh...), nil
}

// WrongReview returns every queued question as a review item, soonest
// review first, whether or not it is due.
func (s *Service) WrongReview(ctx context.Context, limit int) ([]session.Question, error) {
	return s.reviewQuestions(ctx, limit, false)
}

// WrongQuestion is a queued question with its schedule.
type WrongQuestion struct {
	Question session.Question       `json:"question"`
	Review   *spacedrep.ReviewState `json:"review"`
	Status   spacedrep.ReviewStatus `json:"status"`
}

// WrongQuestions lists the review queue.
func (s *Service) WrongQuestions(ctx context.Context, limit int) ([]WrongQuestion, error) {
	states, err := s.scheduler.All(ctx, limit)
	if err != nil {
		return nil, err
	}
	qs, err := s.questions.ByIDs(ctx, stateIDs(states))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]session.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	now := s.now()
	out := make([]WrongQuestion, 0, len(states))
	for _, rs := range states {
		q, ok := byID[rs.QuestionID]
		if !ok {
			continue
		}
		out = append(out, WrongQuestion{Question: q, Review: rs, Status: rs.Status(now)})
	}
	return out, nil
}

// GapTest returns questions from the knowledge points with the lowest
// accuracy. Points never attempted rank as weakest.
func (s *Service) GapTest(ctx context.Context, limit int) ([]session.Question, error) {
	if limit <= 0 {
		limit = DefaultGapLimit
	}
	stats, err := s.questions.KnowledgePointStats(ctx)
	if err != nil {
		return nil, err
	}
	points := WeakestPoints(stats, DefaultGapPoints)
	if len(points) == 0 {
		return nil, nil
	}
	return s.questions.InKnowledgePoints(ctx, points, limit)
}

// WeakestPoints orders knowledge points by accuracy, then by attempt
// count, and returns at most n names.
func WeakestPoints(stats []store.KnowledgePointStat, n int) []string {
	sorted := append([]store.KnowledgePointStat(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := sorted[i].Accuracy(), sorted[j].Accuracy()
		if ai != aj {
			return ai < aj
		}
		return sorted[i].Attempts < sorted[j].Attempts
	})
	var out []string
	for _, st := range sorted {
		if st.Questions == 0 {
			continue
		}
		out = append(out, st.Name)
		if len(out) == n {
			break
		}
	}
	return out
}

func (s *Service) reviewQuestions(ctx context.Context, limit int, dueOnly bool) ([]session.Question, error) {
	var (
		states []*spacedrep.ReviewState
		err    error
	)
	if dueOnly {
		states, err = s.scheduler.Due(ctx, s.now(), limit)
	} else {
		states, err = s.scheduler.All(ctx, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("review queue: %w", err)
	}
	if len(states) == 0 {
		return nil, nil
	}

	qs, err := s.questions.ByIDs(ctx, stateIDs(states))
	if err != nil {
		return nil, err
	}
	intervals := make(map[int64]int, len(states))
	for _, rs := range states {
		intervals[rs.QuestionID] = rs.IntervalDays
	}
	for i := range qs {
		qs[i].IsReview = true
		qs[i].SRSInterval = intervals[qs[i].ID]
	}
	return qs, nil
}

func stateIDs(states []*spacedrep.ReviewState) []int64 {
	ids := make([]int64, len(states))
	for i, rs := range states {
		ids[i] = rs.QuestionID
	}
	return ids
}

func validQuality(q int) bool {
	return q >= 0 && q <= 5
}
