package spacedrep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/abhisek/examiz/internal/store"
)

// ErrNotQueued is returned when rating a question that is not in the
// review queue.
var ErrNotQueued = errors.New("question is not in the review queue")

// Scheduler manages spaced repetition review scheduling.
type Scheduler struct {
	reviews store.ReviewRepo
}

// NewScheduler creates a scheduler persisting to reviews.
func NewScheduler(reviews store.ReviewRepo) *Scheduler {
	return &Scheduler{reviews: reviews}
}

// NewState returns the state of a question entering the queue.
func NewState(questionID int64, now time.Time) *ReviewState {
	return &ReviewState{
		QuestionID:   questionID,
		IntervalDays: FirstIntervalDays,
		EaseFactor:   InitialEase,
		NextReviewAt: now.AddDate(0, 0, FirstIntervalDays),
	}
}

// Lapse resets the interval after a wrong answer and lowers the ease.
func (rs *ReviewState) Lapse(now time.Time) {
	rs.ReviewCount++
	rs.LastReviewedAt = now
	rs.IntervalDays = FirstIntervalDays
	rs.EaseFactor = clampEase(rs.EaseFactor - LapsePenalty)
	rs.NextReviewAt = now.AddDate(0, 0, rs.IntervalDays)
}

// Recall grows the interval by the ease factor after a correct answer
// that came without a quality rating. The interval always grows by at
// least one day.
func (rs *ReviewState) Recall(now time.Time) {
	rs.LastReviewedAt = now
	if rs.IntervalDays < FirstIntervalDays {
		rs.IntervalDays = FirstIntervalDays
	}
	next := rs.IntervalDays * rs.EaseFactor / 100
	if next <= rs.IntervalDays {
		next = rs.IntervalDays + 1
	}
	rs.IntervalDays = min(next, MaxIntervalDays)
	rs.NextReviewAt = now.AddDate(0, 0, rs.IntervalDays)
}

// Rate applies the SM-2 update for a recall quality from 0 to 5.
func (rs *ReviewState) Rate(quality int, now time.Time) {
	rs.ReviewCount++
	rs.LastReviewedAt = now
	rs.EaseFactor = clampEase(rs.EaseFactor + easeDelta(quality))

	switch {
	case quality < PassingQuality:
		rs.IntervalDays = FirstIntervalDays
	case rs.IntervalDays < FirstIntervalDays:
		rs.IntervalDays = FirstIntervalDays
	case rs.IntervalDays == FirstIntervalDays:
		rs.IntervalDays = SecondIntervalDays
	default:
		next := int(math.Round(float64(rs.IntervalDays) * float64(rs.EaseFactor) / 100))
		if next <= rs.IntervalDays {
			next = rs.IntervalDays + 1
		}
		rs.IntervalDays = min(next, MaxIntervalDays)
	}
	rs.NextReviewAt = now.AddDate(0, 0, rs.IntervalDays)
}

// easeDelta is the SM-2 ease adjustment in hundredths:
// 0.1 - (5-q) * (0.08 + (5-q) * 0.02).
func easeDelta(quality int) int {
	d := 5 - quality
	return 10 - d*(8+d*2)
}

func clampEase(ease int) int {
	if ease < MinEase {
		return MinEase
	}
	return ease
}

// RecordAnswer updates the queue after a graded answer. A wrong answer
// queues the question or resets it; a correct answer grows the interval
// of a queued question. When quality is given its SM-2 update is applied
// instead, so the answer counts once. A wrong answer caps the quality
// below passing. It returns the new state, or nil if the question is not
// queued.
func (s *Scheduler) RecordAnswer(ctx context.Context, questionID int64, correct bool, quality *int, now time.Time) (*ReviewState, error) {
	item, err := s.reviews.Get(ctx, questionID)
	if err != nil {
		return nil, err
	}

	var rs *ReviewState
	switch {
	case item != nil:
		rs = FromItem(*item)
	case correct && quality == nil:
		return nil, nil
	default:
		rs = NewState(questionID, now)
		if quality == nil {
			rs.ReviewCount = 1
			rs.LastReviewedAt = now
			return rs, s.save(ctx, rs)
		}
	}

	switch {
	case quality != nil:
		q := *quality
		if !correct && q >= PassingQuality {
			q = PassingQuality - 1
		}
		rs.Rate(q, now)
	case !correct:
		rs.Lapse(now)
	default:
		rs.Recall(now)
	}
	return rs, s.save(ctx, rs)
}

// RecordQuality applies a recall quality to a queued question.
func (s *Scheduler) RecordQuality(ctx context.Context, questionID int64, quality int, now time.Time) (*ReviewState, error) {
	item, err := s.reviews.Get(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("question %d: %w", questionID, ErrNotQueued)
	}
	rs := FromItem(*item)
	rs.Rate(quality, now)
	return rs, s.save(ctx, rs)
}

// Due returns queued questions due at now, most overdue first.
func (s *Scheduler) Due(ctx context.Context, now time.Time, limit int) ([]*ReviewState, error) {
	items, err := s.reviews.Due(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	return fromItems(items), nil
}

// All returns every queued question ordered by next review.
func (s *Scheduler) All(ctx context.Context, limit int) ([]*ReviewState, error) {
	items, err := s.reviews.All(ctx, limit)
	if err != nil {
		return nil, err
	}
	return fromItems(items), nil
}

func (s *Scheduler) save(ctx context.Context, rs *ReviewState) error {
	if err := s.reviews.Put(ctx, rs.Item()); err != nil {
		return fmt.Errorf("save review state: %w", err)
	}
	return nil
}
