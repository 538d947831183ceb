package session

import (
	"context"
	"time"
)

// LocalCache is the device-local persistent store for the live session.
type LocalCache interface {
	// Load returns the stored session, or nil when none is stored.
	// A payload that fails to parse is reported as ErrMalformedState.
	Load(ctx context.Context) (*State, error)

	// Save replaces the stored session atomically.
	Save(ctx context.Context, snap Snapshot, updatedAt time.Time) error

	// Clear removes the stored session.
	Clear(ctx context.Context) error
}

// RemoteStore is the server-side copy of the live session, keyed by a
// session key shared across devices.
type RemoteStore interface {
	// GetSession returns nil when the server has no session for key.
	GetSession(ctx context.Context, key string) (*State, error)
	PutSession(ctx context.Context, key string, snap Snapshot) error
	DeleteSession(ctx context.Context, key string) error
}

// GradeResult is the backend's verdict on one submitted answer.
type GradeResult struct {
	IsCorrect       bool   `json:"is_correct"`
	CorrectAnswer   string `json:"correct_answer"`
	Explanation     string `json:"explanation"`
	MemorizationTip string `json:"memorization_tip"`
}

// Grader checks an answer. When quality is non-nil the backend also uses
// it to update the question's review schedule.
type Grader interface {
	SubmitAnswer(ctx context.Context, questionID int64, selected string, quality *Quality) (*GradeResult, error)
}

// Scheduler records a recall quality for an already graded review item.
type Scheduler interface {
	SubmitQuality(ctx context.Context, questionID int64, q Quality) error
}

// Finisher records a completed session.
type Finisher interface {
	FinishSession(ctx context.Context, topic string, results []AnswerResult) error
}

// QuestionAdmin edits the question bank.
type QuestionAdmin interface {
	DeleteQuestion(ctx context.Context, questionID int64) error
	ToggleFavorite(ctx context.Context, questionID int64) (bool, error)
}

// Backend bundles every remote collaborator the engine talks to. The HTTP
// client in internal/remote satisfies it.
type Backend interface {
	RemoteStore
	Grader
	Scheduler
	Finisher
	QuestionAdmin
}
