// Package ingest reads question banks from JSON and YAML files.
//
// Accepted shapes are a list of questions, a single question, or an
// object with a "questions" list. Each question may use either naming:
//
//	content / question         question text
//	options / option_a..d      answer choices
//	correct_answer / answer    the correct key
//	knowledge_point / category topic label
//
// Options may also be a list of {letter, text, correct} entries, in which
// case the correct key is taken from the entry marked correct.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/store"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported question bank format")

// Skip records a question that could not be imported.
type Skip struct {
	Index  int // 0-based position in the file
	Reason string
}

// Result is a parsed question bank.
type Result struct {
	Questions []session.Question
	Skipped   []Skip
}

// ReadFile parses the bank at path, choosing the decoder by extension.
func ReadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return Parse(filepath.Ext(path), data)
}

// Parse decodes a bank. ext is the file extension including the dot.
func Parse(ext string, data []byte) (*Result, error) {
	var (
		raws []rawQuestion
		err  error
	)
	switch strings.ToLower(ext) {
	case ".json":
		raws, err = decodeJSON(data)
	case ".yaml", ".yml":
		raws, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, raw := range raws {
		q, err := raw.question()
		if err != nil {
			res.Skipped = append(res.Skipped, Skip{Index: i, Reason: err.Error()})
			continue
		}
		res.Questions = append(res.Questions, q)
	}
	return res, nil
}

// Import stores the parsed questions, skipping ones already in the bank.
// It returns the number of new questions.
func Import(ctx context.Context, questions store.QuestionRepo, res *Result) (int, error) {
	if len(res.Questions) == 0 {
		return 0, nil
	}
	_, added, err := questions.Save(ctx, res.Questions)
	if err != nil {
		return 0, fmt.Errorf("save questions: %w", err)
	}
	return added, nil
}

type catalog struct {
	Questions []rawQuestion `json:"questions" yaml:"questions"`
}

func decodeJSON(data []byte) ([]rawQuestion, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var raws []rawQuestion
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode JSON question list: %w", err)
		}
		return raws, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode JSON question bank: %w", err)
	}
	if _, ok := probe["questions"]; ok {
		var c catalog
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode JSON catalog: %w", err)
		}
		return c.Questions, nil
	}
	var raw rawQuestion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode JSON question: %w", err)
	}
	return []rawQuestion{raw}, nil
}

func decodeYAML(data []byte) ([]rawQuestion, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode YAML question bank: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var raws []rawQuestion
		if err := root.Decode(&raws); err != nil {
			return nil, fmt.Errorf("decode YAML question list: %w", err)
		}
		return raws, nil
	case yaml.MappingNode:
		if mappingValue(root, "questions") != nil {
			var c catalog
			if err := root.Decode(&c); err != nil {
				return nil, fmt.Errorf("decode YAML catalog: %w", err)
			}
			return c.Questions, nil
		}
		var raw rawQuestion
		if err := root.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode YAML question: %w", err)
		}
		return []rawQuestion{raw}, nil
	}
	return nil, fmt.Errorf("decode YAML question bank: unexpected top-level node")
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
