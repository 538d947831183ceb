// Package questiongen writes multiple-choice question sets with an LLM.
package questiongen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/session"
)

// ErrNoValidQuestions is returned when every generated question failed
// validation.
var ErrNoValidQuestions = errors.New("no generated question passed validation")

// Input describes one generation request.
type Input struct {
	Topic string
	Count int

	// Prior holds question texts already in the bank for this topic; the
	// prompt asks the model not to repeat them.
	Prior []string

	// Known holds content hashes already in the bank. Matching questions
	// are dropped.
	Known map[string]bool
}

// Batch is the outcome of one generation call.
type Batch struct {
	Questions []session.Question
	Rejected  []*ValidationError
}

// Generator produces question sets.
type Generator interface {
	Generate(ctx context.Context, in Input) (*Batch, error)
}

// LLMGenerator implements Generator with an llm.Provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// New creates an LLMGenerator.
func New(provider llm.Provider, cfg Config) *LLMGenerator {
	return &LLMGenerator{provider: provider, config: cfg}
}

type questionOutput struct {
	Content         string            `json:"content"`
	Options         map[string]string `json:"options"`
	CorrectAnswer   string            `json:"correct_answer"`
	Explanation     string            `json:"explanation"`
	MemorizationTip string            `json:"memorization_tip"`
	KnowledgePoint  string            `json:"knowledge_point"`
}

type setOutput struct {
	Questions []questionOutput `json:"questions"`
}

// Generate asks the model for in.Count questions and returns those that
// pass every validator. Failing questions are collected in Batch.Rejected;
// the call only fails when none survive.
func (g *LLMGenerator) Generate(ctx context.Context, in Input) (*Batch, error) {
	in.Topic = strings.TrimSpace(in.Topic)
	if in.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if in.Count <= 0 {
		in.Count = g.config.DefaultCount
	}
	if g.config.MaxCount > 0 && in.Count > g.config.MaxCount {
		in.Count = g.config.MaxCount
	}

	req := llm.UserPrompt(systemPrompt, buildUserMessage(in, g.config))
	req.Schema = QuestionSetSchema
	req.MaxTokens = g.config.TokensPerQuestion * in.Count
	req.Temperature = g.config.Temperature

	resp, err := g.provider.Generate(llm.WithPurpose(ctx, g.config.Purpose), req)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}
	var out setOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	known := make(map[string]bool, len(in.Known)+len(out.Questions))
	for h := range in.Known {
		known[h] = true
	}
	vin := in
	vin.Known = known

	batch := &Batch{}
	for _, raw := range out.Questions {
		q := toQuestion(raw, in.Topic)
		if verr := g.validate(&q, vin); verr != nil {
			batch.Rejected = append(batch.Rejected, verr)
			continue
		}
		known[session.ContentHash(q.Content, q.Options)] = true
		batch.Questions = append(batch.Questions, q)
	}
	if len(batch.Questions) == 0 {
		return batch, fmt.Errorf("%w (%d rejected)", ErrNoValidQuestions, len(batch.Rejected))
	}
	return batch, nil
}

func (g *LLMGenerator) validate(q *session.Question, in Input) *ValidationError {
	for _, v := range g.config.Validators {
		if err := v.Validate(q, in); err != nil {
			return err
		}
	}
	return nil
}

// toQuestion trims the model output and orders options by key.
func toQuestion(raw questionOutput, topic string) session.Question {
	q := session.Question{
		Content:         strings.TrimSpace(raw.Content),
		CorrectAnswer:   strings.ToUpper(strings.TrimSpace(raw.CorrectAnswer)),
		Explanation:     strings.TrimSpace(raw.Explanation),
		MemorizationTip: strings.TrimSpace(raw.MemorizationTip),
		KnowledgePoint:  strings.TrimSpace(raw.KnowledgePoint),
	}
	if q.KnowledgePoint == "" {
		q.KnowledgePoint = topic
	}
	for _, key := range optionKeys {
		if text, ok := raw.Options[key]; ok {
			q.Options = append(q.Options, session.Option{Key: key, Text: strings.TrimSpace(text)})
		}
	}
	return q
}
