package questiongen

import "github.com/abhisek/examiz/internal/llm"

// Config controls the LLMGenerator.
type Config struct {
	// Validators run in order; the first failure rejects the question.
	Validators []Validator

	DefaultCount int
	MaxCount     int

	// TokensPerQuestion scales the response budget with the set size.
	TokensPerQuestion int
	Temperature       float64

	// MaxPriorQuestions caps the already-asked list in the prompt.
	MaxPriorQuestions int

	Purpose llm.Purpose
}

// DefaultConfig returns the standard validator chain and limits.
func DefaultConfig() Config {
	return Config{
		Validators: []Validator{
			&StructuralValidator{},
			&DuplicateValidator{},
		},
		DefaultCount:      5,
		MaxCount:          20,
		TokensPerQuestion: 600,
		Temperature:       0.7,
		MaxPriorQuestions: 20,
		Purpose:           llm.PurposeQuestionGen,
	}
}
