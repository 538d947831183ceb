// Package remote is the HTTP client for the examiz backend. It carries the
// remote copy of the live session and the grading, scheduling and
// generation endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/examiz/internal/session"
)

// DefaultTimeout bounds every request except generation.
const DefaultTimeout = 15 * time.Second

// GenerateTimeout bounds generation requests, which wait on an LLM.
const GenerateTimeout = 5 * time.Minute

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one backend.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ session.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func sessionPath(key string) string {
	return "/api/quiz/session/" + url.PathEscape(key)
}

func questionPath(id int64, action string) string {
	p := "/api/questions/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

// GetSession returns nil when the server holds no session for key.
func (c *Client) GetSession(ctx context.Context, key string) (*session.State, error) {
	var resp SessionResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(key), nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: %s", session.ErrMalformedState, apiErr.Message)
		}
		return nil, err
	}
	if !resp.Exists {
		return nil, nil
	}
	st := &session.State{Snapshot: session.Snapshot{
		Topic:        resp.Topic,
		Questions:    resp.Questions,
		Results:      resp.Results,
		CurrentIndex: resp.CurrentIndex,
	}}
	if resp.UpdatedAt != nil {
		st.UpdatedAt = *resp.UpdatedAt
	}
	return st, nil
}

func (c *Client) PutSession(ctx context.Context, key string, snap session.Snapshot) error {
	return c.do(ctx, http.MethodPut, sessionPath(key), snap, &PutSessionResponse{})
}

func (c *Client) DeleteSession(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(key), nil, nil)
}

func (c *Client) SubmitAnswer(ctx context.Context, questionID int64, selected string, quality *session.Quality) (*session.GradeResult, error) {
	req := SubmitRequest{SelectedAnswer: selected}
	if quality != nil {
		q := int(*quality)
		req.Quality = &q
	}
	var res session.GradeResult
	if err := c.do(ctx, http.MethodPost, questionPath(questionID, "submit"), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SubmitQuality(ctx context.Context, questionID int64, q session.Quality) error {
	return c.do(ctx, http.MethodPost, questionPath(questionID, "review"), ReviewRequest{Quality: int(q)}, &ReviewResponse{})
}

func (c *Client) FinishSession(ctx context.Context, topic string, results []session.AnswerResult) error {
	return c.do(ctx, http.MethodPost, "/api/quiz/finish", FinishRequest{Topic: topic, SessionData: results}, &FinishResponse{})
}

func (c *Client) DeleteQuestion(ctx context.Context, questionID int64) error {
	return c.do(ctx, http.MethodDelete, questionPath(questionID, ""), nil, nil)
}

func (c *Client) ToggleFavorite(ctx context.Context, questionID int64) (bool, error) {
	var res FavoriteResponse
	if err := c.do(ctx, http.MethodPost, questionPath(questionID, "favorite"), nil, &res); err != nil {
		return false, err
	}
	return res.IsFavorite, nil
}

// GenerateQuestions asks the backend for a new question set. It satisfies
// generation.Generator.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, count int) ([]session.Question, error) {
	var res GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/quiz/generate", GenerateRequest{Topic: topic, NumQuestions: count}, &res); err != nil {
		return nil, err
	}
	return res.Questions, nil
}

// StudySet pulls due reviews followed by new questions. Zero limits use
// the server defaults.
func (c *Client) StudySet(ctx context.Context, reviews, fresh int) ([]session.Question, error) {
	q := url.Values{}
	if reviews > 0 {
		q.Set("reviews", strconv.Itoa(reviews))
	}
	if fresh > 0 {
		q.Set("new", strconv.Itoa(fresh))
	}
	return c.pull(ctx, "/api/quiz/study", q)
}

// GapTest pulls questions from the weakest knowledge points.
func (c *Client) GapTest(ctx context.Context, limit int) ([]session.Question, error) {
	return c.pull(ctx, "/api/quiz/gap-test", limitQuery(limit))
}

// WrongReview pulls every queued question as a review item.
func (c *Client) WrongReview(ctx context.Context, limit int) ([]session.Question, error) {
	return c.pull(ctx, "/api/wrong-questions/review", limitQuery(limit))
}

// WrongQuestions lists the review queue with schedules.
func (c *Client) WrongQuestions(ctx context.Context, limit int) ([]WrongQuestion, error) {
	var res WrongQuestionsResponse
	if err := c.do(ctx, http.MethodGet, withQuery("/api/wrong-questions", limitQuery(limit)), nil, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// SessionLogs lists finished sessions, newest first.
func (c *Client) SessionLogs(ctx context.Context, limit int) ([]SessionLog, error) {
	var res SessionLogsResponse
	if err := c.do(ctx, http.MethodGet, withQuery("/api/stats/sessions", limitQuery(limit)), nil, &res); err != nil {
		return nil, err
	}
	return res.Sessions, nil
}

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) pull(ctx context.Context, path string, q url.Values) ([]session.Question, error) {
	var res QuestionsResponse
	if err := c.do(ctx, http.MethodGet, withQuery(path, q), nil, &res); err != nil {
		return nil, err
	}
	return res.Questions, nil
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// do sends body as JSON and decodes a 2xx reply into out when out is
// non-nil. Requests without a deadline get DefaultTimeout, or
// GenerateTimeout for generation.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		timeout := DefaultTimeout
		if strings.HasSuffix(path, "/generate") {
			timeout = GenerateTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
