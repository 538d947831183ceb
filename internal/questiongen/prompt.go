package questiongen

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a strict exam question writer preparing learners for a high-level language proficiency test.

Rules:
- Write multiple-choice questions on the given topic at exam difficulty.
- Each question has exactly four options labelled A to D and exactly one correct option.
- Distractors must be plausible and reflect common learner mistakes.
- The explanation says why the correct option is right and why each distractor is wrong.
- The memorization tip is one short sentence.
- knowledge_point names the specific point tested; use the topic when nothing narrower fits.
- Do not repeat any question from the "already in the bank" list, and do not repeat yourself.`

// Line prefixes of the user message. ParseRecord reads them back.
const (
	topicPrefix = "Topic: "
	countPrefix = "Number of questions: "
)

func buildUserMessage(in Input, cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", topicPrefix, in.Topic)
	fmt.Fprintf(&b, "%s%d\n", countPrefix, in.Count)
	b.WriteString("\nAlready in the bank:\n")
	b.WriteString(buildDedup(in.Prior, cfg.MaxPriorQuestions))
	return b.String()
}

// buildDedup lists the most recent max prior questions, or "None".
func buildDedup(prior []string, max int) string {
	if len(prior) == 0 {
		return "None"
	}
	if max > 0 && len(prior) > max {
		prior = prior[len(prior)-max:]
	}
	var b strings.Builder
	for i, q := range prior {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}
