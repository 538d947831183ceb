package questiongen

import "github.com/abhisek/examiz/internal/llm"

// optionKeys are the option labels the model is asked to fill.
var optionKeys = []string{"A", "B", "C", "D"}

// QuestionSetSchema is the structured output for a question set.
var QuestionSetSchema = &llm.Schema{
	Name:        "question-set",
	Description: "A set of multiple-choice exam questions with answers and explanations",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content": map[string]any{
							"type":        "string",
							"description": "The question stem, with a blank or underline where the answer goes",
						},
						"options": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"A": map[string]any{"type": "string"},
								"B": map[string]any{"type": "string"},
								"C": map[string]any{"type": "string"},
								"D": map[string]any{"type": "string"},
							},
							"required":             []any{"A", "B", "C", "D"},
							"additionalProperties": false,
						},
						"correct_answer": map[string]any{
							"type": "string",
							"enum": []any{"A", "B", "C", "D"},
						},
						"explanation": map[string]any{
							"type":        "string",
							"description": "Why the answer is correct and why each distractor is wrong",
						},
						"memorization_tip": map[string]any{
							"type":        "string",
							"description": "A short mnemonic for remembering the point being tested",
						},
						"knowledge_point": map[string]any{
							"type":        "string",
							"description": "The grammar point or vocabulary item tested",
						},
					},
					"required":             []any{"content", "options", "correct_answer", "explanation", "memorization_tip", "knowledge_point"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}
