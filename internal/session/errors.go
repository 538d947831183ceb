package session

import "errors"

var (
	// ErrNoActiveSession is returned when neither store holds a session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrMalformedState marks a stored payload that could not be parsed.
	ErrMalformedState = errors.New("malformed session state")

	// ErrEmptySession is returned when starting a session without questions.
	ErrEmptySession = errors.New("session has no questions")

	// ErrRemoteSyncFailed wraps failures of background remote writes.
	ErrRemoteSyncFailed = errors.New("remote session sync failed")

	ErrGradingFailed        = errors.New("grading failed")
	ErrFeedbackFailed       = errors.New("review feedback failed")
	ErrDeleteQuestionFailed = errors.New("delete question failed")
	ErrFavoriteFailed       = errors.New("toggle favorite failed")
	ErrFinishFailed         = errors.New("finish session failed")

	// ErrQualityRequired is returned when leaving a graded review item
	// before a recall quality was given.
	ErrQualityRequired = errors.New("review item needs a recall quality")

	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownOption     = errors.New("unknown option")
	ErrIndexOutOfRange   = errors.New("question index out of range")
	ErrNotReviewItem     = errors.New("question is not a review item")
	ErrSessionClosed     = errors.New("session is closed")
)
