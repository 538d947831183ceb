package store

import (
	"context"
	"time"

	"github.com/abhisek/examiz/internal/session"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To

	Purpose string // exact match when set
}

// QuestionFilter narrows question listings.
type QuestionFilter struct {
	KnowledgePoint string
	FavoritesOnly  bool
	Limit          int
}

// KnowledgePointStat aggregates the bank and attempt history of one
// knowledge point.
type KnowledgePointStat struct {
	Name       string
	Questions  int
	Unanswered int
	Attempts   int
	Correct    int
}

// Accuracy returns Correct / Attempts, or 0 with no attempts.
func (k KnowledgePointStat) Accuracy() float64 {
	if k.Attempts == 0 {
		return 0
	}
	return float64(k.Correct) / float64(k.Attempts)
}

// QuestionRepo manages the question bank.
type QuestionRepo interface {
	// Save inserts questions that are not yet in the bank, matching by
	// content hash. It returns every question with its bank ID, in input
	// order, and the number of newly inserted rows.
	Save(ctx context.Context, qs []session.Question) ([]session.Question, int, error)

	// Get returns a question or ErrNotFound.
	Get(ctx context.Context, id int64) (*session.Question, error)

	// List returns questions matching the filter, newest first.
	List(ctx context.Context, f QuestionFilter) ([]session.Question, error)

	// ByIDs returns the questions with the given IDs, in the given order.
	ByIDs(ctx context.Context, ids []int64) ([]session.Question, error)

	// NeverCorrect returns questions without a correct attempt, oldest
	// first, skipping the excluded IDs.
	NeverCorrect(ctx context.Context, limit int, exclude []int64) ([]session.Question, error)

	// InKnowledgePoints returns up to limit questions from the given points.
	InKnowledgePoints(ctx context.Context, points []string, limit int) ([]session.Question, error)

	// KnowledgePointStats aggregates per knowledge point.
	KnowledgePointStats(ctx context.Context) ([]KnowledgePointStat, error)

	// Delete removes a question or returns ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// ToggleFavorite flips the favorite flag and returns the new value.
	ToggleFavorite(ctx context.Context, id int64) (bool, error)

	Count(ctx context.Context) (int, error)
}

// Attempt is one graded answer.
type Attempt struct {
	QuestionID     int64
	SelectedAnswer string
	IsCorrect      bool
	Quality        int
	AttemptedAt    time.Time
}

// AttemptRepo records answer attempts.
type AttemptRepo interface {
	Record(ctx context.Context, a Attempt) error

	// ForQuestion returns a question's attempts, oldest first.
	ForQuestion(ctx context.Context, questionID int64) ([]Attempt, error)
}

// ReviewItem is a question's position in the spaced-repetition queue.
type ReviewItem struct {
	QuestionID     int64
	ReviewCount    int
	IntervalDays   int
	EaseFactor     int // hundredths, 250 = 2.5
	NextReviewAt   time.Time
	LastReviewedAt time.Time
}

// ReviewRepo manages the spaced-repetition queue.
type ReviewRepo interface {
	// Get returns the queue entry for a question, or nil if not queued.
	Get(ctx context.Context, questionID int64) (*ReviewItem, error)

	// Put inserts or replaces a queue entry.
	Put(ctx context.Context, item ReviewItem) error

	// Due returns entries with NextReviewAt <= now, most overdue first.
	Due(ctx context.Context, now time.Time, limit int) ([]ReviewItem, error)

	// All returns every entry ordered by NextReviewAt.
	All(ctx context.Context, limit int) ([]ReviewItem, error)

	Count(ctx context.Context) (int, error)
}

// SessionRepo stores live sessions by session key.
type SessionRepo interface {
	// Get returns nil when no session is stored under key. A stored
	// payload that does not parse is reported as session.ErrMalformedState.
	Get(ctx context.Context, key string) (*session.State, error)

	// Put replaces the session under key and returns the server stamp.
	Put(ctx context.Context, key string, snap session.Snapshot) (time.Time, error)

	// Delete removes the session. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// SessionLog is the record of a finished session.
type SessionLog struct {
	ID         string
	Topic      string
	Answered   int
	Correct    int
	Results    []session.AnswerResult
	FinishedAt time.Time
}

// StudyRecord aggregates one day of study.
type StudyRecord struct {
	Date              string // YYYY-MM-DD
	QuestionsAnswered int
	CorrectAnswers    int
	Sessions          int
}

// HistoryRepo stores finished sessions and daily study totals.
type HistoryRepo interface {
	// AppendLog stores a finished session and adds it to the study record
	// for its day.
	AppendLog(ctx context.Context, log SessionLog) error

	// Logs returns finished sessions, newest first.
	Logs(ctx context.Context, limit int) ([]SessionLog, error)

	// StudyRecords returns the most recent days, newest first.
	StudyRecords(ctx context.Context, limit int) ([]StudyRecord, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStat aggregates LLM usage by purpose or model.
type LLMUsageStat struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStat, error)
	LLMUsageByModel(ctx context.Context) ([]LLMUsageStat, error)
}
