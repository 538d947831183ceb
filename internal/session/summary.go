package session

import "sort"

// Summary holds the end-of-session report.
type Summary struct {
	Topic           string
	TotalQuestions  int
	Answered        int
	Correct         int
	Skipped         int
	Accuracy        float64
	KnowledgePoints []KnowledgePointResult
}

// KnowledgePointResult is the per-knowledge-point breakdown of a summary.
type KnowledgePointResult struct {
	Name     string
	Answered int
	Correct  int
}

// BuildSummary creates a Summary from a session state.
func BuildSummary(st *State) *Summary {
	p := ProgressOf(st)
	byPoint := map[string]*KnowledgePointResult{}
	var order []string
	for i, r := range st.Results {
		if !r.Answered() {
			continue
		}
		name := st.Questions[i].KnowledgePoint
		kp, ok := byPoint[name]
		if !ok {
			kp = &KnowledgePointResult{Name: name}
			byPoint[name] = kp
			order = append(order, name)
		}
		kp.Answered++
		if r.Correct() {
			kp.Correct++
		}
	}
	sort.Strings(order)

	results := make([]KnowledgePointResult, 0, len(order))
	for _, name := range order {
		results = append(results, *byPoint[name])
	}
	return &Summary{
		Topic:           st.Topic,
		TotalQuestions:  p.Total,
		Answered:        p.Answered,
		Correct:         p.Correct,
		Skipped:         p.Skipped,
		Accuracy:        p.Accuracy,
		KnowledgePoints: results,
	}
}
