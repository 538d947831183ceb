package session

import "strings"

// Normalize repairs a loaded snapshot in place so that it satisfies the
// session invariants: one result slot per question, every non-null result
// bound to its slot's question, and a cursor inside the question list.
// It returns false when the snapshot has no questions, which callers treat
// the same as an absent session.
func Normalize(s *Snapshot) bool {
	if len(s.Questions) == 0 {
		return false
	}
	if strings.TrimSpace(s.Topic) == "" {
		s.Topic = DefaultTopic
	}
	for i := range s.Questions {
		if strings.TrimSpace(s.Questions[i].KnowledgePoint) == "" {
			s.Questions[i].KnowledgePoint = DefaultKnowledgePoint
		}
	}

	n := len(s.Questions)
	switch {
	case len(s.Results) > n:
		s.Results = s.Results[:n]
	case len(s.Results) < n:
		s.Results = append(s.Results, make([]*AnswerResult, n-len(s.Results))...)
	}

	for i, r := range s.Results {
		if r == nil {
			continue
		}
		qid := s.Questions[i].ID
		switch {
		case r.QuestionID == 0:
			r.QuestionID = qid
		case r.QuestionID != qid:
			// A result for another question cannot be trusted for this slot.
			s.Results[i] = nil
		}
	}

	if s.CurrentIndex < 0 {
		s.CurrentIndex = 0
	}
	if s.CurrentIndex >= n {
		s.CurrentIndex = n - 1
	}
	return true
}
