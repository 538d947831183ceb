package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/examiz/internal/session"
)

// rawQuestion accepts every supported field spelling.
type rawQuestion struct {
	Content  string `json:"content" yaml:"content"`
	Question string `json:"question" yaml:"question"`
	Text     string `json:"text" yaml:"text"`

	Options rawOptions `json:"options" yaml:"options"`
	OptionA string     `json:"option_a" yaml:"option_a"`
	OptionB string     `json:"option_b" yaml:"option_b"`
	OptionC string     `json:"option_c" yaml:"option_c"`
	OptionD string     `json:"option_d" yaml:"option_d"`

	CorrectAnswer string `json:"correct_answer" yaml:"correct_answer"`
	Answer        string `json:"answer" yaml:"answer"`

	Explanation     string `json:"explanation" yaml:"explanation"`
	MemorizationTip string `json:"memorization_tip" yaml:"memorization_tip"`
	KnowledgePoint  string `json:"knowledge_point" yaml:"knowledge_point"`
	Category        string `json:"category" yaml:"category"`
}

// rawOptions is either a key→text object or a list of lettered entries.
type rawOptions struct {
	opts    session.Options
	correct []string
}

type letteredOption struct {
	Letter  string `json:"letter" yaml:"letter"`
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
}

func (r *rawOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []letteredOption
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		r.fromList(list)
		return nil
	}
	return json.Unmarshal(data, &r.opts)
}

func (r *rawOptions) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var list []letteredOption
		if err := n.Decode(&list); err != nil {
			return err
		}
		r.fromList(list)
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i].Value, n.Content[i+1].Value
			if r.opts.Has(key) {
				return fmt.Errorf("options: duplicate key %q", key)
			}
			r.opts = append(r.opts, session.Option{Key: key, Text: val})
		}
		return nil
	}
	return fmt.Errorf("options: expected a mapping or a list at line %d", n.Line)
}

func (r *rawOptions) fromList(list []letteredOption) {
	for _, o := range list {
		key := strings.ToUpper(strings.TrimSpace(o.Letter))
		r.opts = append(r.opts, session.Option{Key: key, Text: o.Text})
		if o.Correct {
			r.correct = append(r.correct, key)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// question normalises the raw fields into a bank question.
func (r rawQuestion) question() (session.Question, error) {
	q := session.Question{
		Content:         firstNonEmpty(r.Content, r.Question, r.Text),
		Explanation:     strings.TrimSpace(r.Explanation),
		MemorizationTip: strings.TrimSpace(r.MemorizationTip),
		KnowledgePoint:  firstNonEmpty(r.KnowledgePoint, r.Category),
	}
	if q.Content == "" {
		return q, errors.New("missing content")
	}

	q.Options = r.Options.opts
	if len(q.Options) == 0 {
		for _, o := range []session.Option{
			{Key: "A", Text: r.OptionA},
			{Key: "B", Text: r.OptionB},
			{Key: "C", Text: r.OptionC},
			{Key: "D", Text: r.OptionD},
		} {
			if o.Text = strings.TrimSpace(o.Text); o.Text != "" {
				q.Options = append(q.Options, o)
			}
		}
	}
	if len(q.Options) < 2 {
		return q, fmt.Errorf("need at least 2 options, got %d", len(q.Options))
	}

	answer := firstNonEmpty(r.CorrectAnswer, r.Answer)
	if answer == "" {
		switch len(r.Options.correct) {
		case 0:
		case 1:
			answer = r.Options.correct[0]
		default:
			return q, fmt.Errorf("multiple correct options %v", r.Options.correct)
		}
	}
	if answer == "" {
		return q, errors.New("missing correct answer")
	}
	q.CorrectAnswer = strings.ToUpper(answer)
	if !q.Options.Has(q.CorrectAnswer) {
		return q, fmt.Errorf("correct answer %q is not an option", q.CorrectAnswer)
	}
	if q.KnowledgePoint == "" {
		q.KnowledgePoint = session.DefaultKnowledgePoint
	}
	return q, nil
}
