package remote

import (
	"time"

	"github.com/abhisek/examiz/internal/session"
)

// Request and response bodies shared by the client and internal/server.

// SessionResponse is the body of GET /api/quiz/session/:key.
type SessionResponse struct {
	Exists       bool                    `json:"exists"`
	Topic        string                  `json:"topic,omitempty"`
	Questions    []session.Question      `json:"questions,omitempty"`
	Results      []*session.AnswerResult `json:"results,omitempty"`
	CurrentIndex int                     `json:"current_index"`
	UpdatedAt    *time.Time              `json:"updated_at,omitempty"`
}

// PutSessionResponse carries the server stamp of a stored session.
type PutSessionResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type SubmitRequest struct {
	SelectedAnswer string `json:"selected_answer"`
	Quality        *int   `json:"quality,omitempty"`
}

type ReviewRequest struct {
	Quality int `json:"quality"`
}

// ReviewResponse is the question's schedule after a quality update.
type ReviewResponse struct {
	QuestionID   int64     `json:"question_id"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   int       `json:"ease_factor"`
	NextReviewAt time.Time `json:"next_review_at"`
}

type FavoriteResponse struct {
	IsFavorite bool `json:"is_favorite"`
}

type FinishRequest struct {
	Topic       string                 `json:"topic"`
	SessionData []session.AnswerResult `json:"session_data"`
}

type FinishResponse struct {
	ID       string `json:"id"`
	Answered int    `json:"answered"`
	Correct  int    `json:"correct"`
}

type GenerateRequest struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
}

// GenerateResponse lists the stored questions and the reasons any
// generated question was dropped.
type GenerateResponse struct {
	Questions []session.Question `json:"questions"`
	Added     int                `json:"added"`
	Rejected  []string           `json:"rejected,omitempty"`
}

// QuestionsResponse is the body of every pull endpoint.
type QuestionsResponse struct {
	Questions []session.Question `json:"questions"`
}

// WrongQuestion is one entry of the review queue listing.
type WrongQuestion struct {
	Question     session.Question `json:"question"`
	ReviewCount  int              `json:"review_count"`
	IntervalDays int              `json:"interval_days"`
	NextReviewAt time.Time        `json:"next_review_at"`
	Status       string           `json:"status"`
}

type WrongQuestionsResponse struct {
	Items []WrongQuestion `json:"items"`
}

// SessionLog is one finished session.
type SessionLog struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Answered   int       `json:"answered"`
	Correct    int       `json:"correct"`
	FinishedAt time.Time `json:"finished_at"`
}

type SessionLogsResponse struct {
	Sessions []SessionLog `json:"sessions"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
