package questiongen

import (
	"fmt"
	"unicode/utf8"

	"github.com/abhisek/examiz/internal/session"
)

// Validator checks one generated question.
type Validator interface {
	Name() string
	Validate(q *session.Question, in Input) *ValidationError
}

// ValidationError is why a question was rejected.
type ValidationError struct {
	Validator string
	Question  string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

const (
	maxContentRunes     = 1000
	maxExplanationRunes = 2000
	minOptions          = 2
)

// StructuralValidator checks required fields and that the answer key
// names an option.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *session.Question, _ Input) *ValidationError {
	fail := func(format string, args ...any) *ValidationError {
		return &ValidationError{Validator: v.Name(), Question: q.Content, Message: fmt.Sprintf(format, args...)}
	}
	switch {
	case q.Content == "":
		return fail("content is empty")
	case utf8.RuneCountInString(q.Content) > maxContentRunes:
		return fail("content exceeds %d characters", maxContentRunes)
	case len(q.Options) < minOptions:
		return fail("needs at least %d options, got %d", minOptions, len(q.Options))
	case !q.Options.Has(q.CorrectAnswer):
		return fail("correct_answer %q is not an option", q.CorrectAnswer)
	case utf8.RuneCountInString(q.Explanation) > maxExplanationRunes:
		return fail("explanation exceeds %d characters", maxExplanationRunes)
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.Text == "" {
			return fail("option %s is empty", o.Key)
		}
		if seen[o.Text] {
			return fail("option %s repeats %q", o.Key, o.Text)
		}
		seen[o.Text] = true
	}
	return nil
}

// DuplicateValidator rejects questions whose content hash is known.
type DuplicateValidator struct{}

func (v *DuplicateValidator) Name() string { return "duplicate" }

func (v *DuplicateValidator) Validate(q *session.Question, in Input) *ValidationError {
	if in.Known[session.ContentHash(q.Content, q.Options)] {
		return &ValidationError{Validator: v.Name(), Question: q.Content, Message: "question already exists"}
	}
	return nil
}
