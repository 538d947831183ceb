package llm

import "strings"

// ModelCost is USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the USD cost of a call.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputPerMTok + float64(outputTokens)*c.OutputPerMTok) / 1_000_000
}

// LookupCost returns the price of modelID, matching dated snapshots and
// provider-prefixed OpenRouter IDs by their family. Nil means unknown.
func LookupCost(modelID string) *ModelCost {
	id := modelID
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	if c, ok := modelCosts[id]; ok {
		return &c
	}
	var (
		best    ModelCost
		bestLen int
	)
	for family, c := range modelCosts {
		if strings.HasPrefix(id, family+"-") && len(family) > bestLen {
			best, bestLen = c, len(family)
		}
	}
	if bestLen == 0 {
		return nil
	}
	return &best
}

// TotalCost prices a set of usage rows. Rows for unknown models are
// skipped and reported.
func TotalCost(models map[string][2]int) (usd float64, unknown []string) {
	for model, tok := range models {
		c := LookupCost(model)
		if c == nil {
			unknown = append(unknown, model)
			continue
		}
		usd += c.Cost(tok[0], tok[1])
	}
	return usd, unknown
}

// modelCosts lists model families. Dated snapshots resolve to their family.
var modelCosts = map[string]ModelCost{
	"claude-3-5-haiku":  {0.8, 4},
	"claude-3-7-sonnet": {3, 15},
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4":   {3, 15},
	"claude-sonnet-4-5": {3, 15},
	"claude-opus-4-1":   {15, 75},
	"claude-opus-4-5":   {5, 25},

	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-5":        {1.25, 10},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},
	"o4-mini":      {1.1, 4.4},

	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
}
