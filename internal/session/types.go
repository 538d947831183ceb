package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultKnowledgePoint is used when a question arrives without one.
const DefaultKnowledgePoint = "uncategorized"

// DefaultTopic labels sessions that were stored without a topic.
const DefaultTopic = "General Practice"

// Option is one answer choice of a question.
type Option struct {
	Key  string
	Text string
}

// Options is an ordered set of answer choices. It is encoded as a JSON
// object whose key order is preserved in both directions.
type Options []Option

// Get returns the option with the given key.
func (o Options) Get(key string) (Option, bool) {
	for _, opt := range o {
		if opt.Key == key {
			return opt, true
		}
	}
	return Option{}, false
}

// Has reports whether key names one of the options.
func (o Options) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Keys returns the option keys in display order.
func (o Options) Keys() []string {
	keys := make([]string, len(o))
	for i, opt := range o {
		keys[i] = opt.Key
	}
	return keys
}

func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(opt.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(opt.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Options) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("options: %w", err)
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("options: expected object, got %v", tok)
	}

	var out Options
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("options: %w", err)
		}
		key, _ := keyTok.(string)
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("options: value for %q: %w", key, err)
		}
		if out.Has(key) {
			return fmt.Errorf("options: duplicate key %q", key)
		}
		out = append(out, Option{Key: key, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	*o = out
	return nil
}

// Question is a multiple-choice question as served by the backend.
type Question struct {
	ID              int64   `json:"id"`
	Content         string  `json:"content"`
	Options         Options `json:"options"`
	CorrectAnswer   string  `json:"correct_answer,omitempty"`
	Explanation     string  `json:"explanation,omitempty"`
	MemorizationTip string  `json:"memorization_tip,omitempty"`
	KnowledgePoint  string  `json:"knowledge_point"`
	IsFavorite      bool    `json:"is_favorite,omitempty"`

	// IsReview marks a spaced-repetition item that is answered blind first.
	IsReview bool `json:"is_review,omitempty"`

	// SRSInterval is the current review interval in days, for display only.
	SRSInterval int `json:"srs_interval,omitempty"`
}

// ResultDetails is the grading feedback shown after an answer.
type ResultDetails struct {
	CorrectAnswer   string `json:"correct_answer"`
	Explanation     string `json:"explanation,omitempty"`
	MemorizationTip string `json:"memorization_tip,omitempty"`
}

// AnswerResult records what happened to one slot of a session. A nil
// *AnswerResult means the slot has not been answered yet.
type AnswerResult struct {
	QuestionID     int64          `json:"question_id"`
	SelectedAnswer string         `json:"selected_answer,omitempty"`
	IsCorrect      *bool          `json:"is_correct"`
	Skipped        bool           `json:"skipped,omitempty"`
	Quality        Quality        `json:"quality,omitempty"`
	Details        *ResultDetails `json:"result_details,omitempty"`
}

// Answered reports whether the result is a real answer (not skipped).
func (r *AnswerResult) Answered() bool {
	return r != nil && !r.Skipped
}

// Graded reports whether the backend has judged the answer.
func (r *AnswerResult) Graded() bool {
	return r != nil && !r.Skipped && r.IsCorrect != nil
}

// Correct reports whether the result is a graded correct answer.
func (r *AnswerResult) Correct() bool {
	return r.Graded() && *r.IsCorrect
}

// UnmarshalJSON accepts the current object shape plus the legacy forms
// written by older clients: the bare string "skipped", {"status":"skipped"},
// is_correct encoded as 0/1, and grading fields stored flat on the result.
func (r *AnswerResult) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if strings.EqualFold(s, "skipped") {
			*r = AnswerResult{Skipped: true}
			return nil
		}
		return fmt.Errorf("answer result: unexpected string %q", s)
	}

	var raw struct {
		QuestionID      int64           `json:"question_id"`
		SelectedAnswer  string          `json:"selected_answer"`
		IsCorrect       json.RawMessage `json:"is_correct"`
		Skipped         bool            `json:"skipped"`
		Status          string          `json:"status"`
		Quality         Quality         `json:"quality"`
		Details         *ResultDetails  `json:"result_details"`
		CorrectAnswer   string          `json:"correct_answer"`
		Explanation     string          `json:"explanation"`
		MemorizationTip string          `json:"memorization_tip"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}

	correct, err := parseTriState(raw.IsCorrect)
	if err != nil {
		return err
	}

	out := AnswerResult{
		QuestionID:     raw.QuestionID,
		SelectedAnswer: raw.SelectedAnswer,
		IsCorrect:      correct,
		Skipped:        raw.Skipped || strings.EqualFold(raw.Status, "skipped"),
		Quality:        raw.Quality,
		Details:        raw.Details,
	}
	if out.Details == nil && raw.CorrectAnswer != "" {
		out.Details = &ResultDetails{
			CorrectAnswer:   raw.CorrectAnswer,
			Explanation:     raw.Explanation,
			MemorizationTip: raw.MemorizationTip,
		}
	}
	if out.Skipped {
		out.IsCorrect = nil
	}
	*r = out
	return nil
}

func parseTriState(raw json.RawMessage) (*bool, error) {
	switch strings.TrimSpace(string(raw)) {
	case "", "null":
		return nil, nil
	case "true", "1":
		v := true
		return &v, nil
	case "false", "0":
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("answer result: invalid is_correct %s", raw)
}

// Snapshot is the persisted content of a live session.
type Snapshot struct {
	Topic        string          `json:"topic"`
	Questions    []Question      `json:"questions"`
	Results      []*AnswerResult `json:"results"`
	CurrentIndex int             `json:"current_index"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Topic:        s.Topic,
		CurrentIndex: s.CurrentIndex,
		Questions:    make([]Question, len(s.Questions)),
		Results:      make([]*AnswerResult, len(s.Results)),
	}
	for i, q := range s.Questions {
		q.Options = append(Options(nil), q.Options...)
		out.Questions[i] = q
	}
	for i, r := range s.Results {
		if r == nil {
			continue
		}
		c := *r
		if r.IsCorrect != nil {
			v := *r.IsCorrect
			c.IsCorrect = &v
		}
		if r.Details != nil {
			d := *r.Details
			c.Details = &d
		}
		out.Results[i] = &c
	}
	return out
}

// State is a snapshot together with the time it was last written.
type State struct {
	Snapshot
	UpdatedAt time.Time `json:"updated_at"`
}

// Candidate is one store's view of the session during reconciliation.
// A nil *Candidate means the store has no usable session.
type Candidate = State

// Len returns the number of slots in the session.
func (s *State) Len() int {
	return len(s.Questions)
}

// Current returns the question under the cursor.
func (s *State) Current() Question {
	return s.Questions[s.CurrentIndex]
}

// AnsweredResults returns the non-null, non-skipped results in slot order.
func (s *State) AnsweredResults() []AnswerResult {
	var out []AnswerResult
	for _, r := range s.Results {
		if r.Answered() {
			out = append(out, *r)
		}
	}
	return out
}
