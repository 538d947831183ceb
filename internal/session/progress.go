package session

// SlotMark summarizes one slot for the navigation strip.
type SlotMark int

const (
	MarkUnanswered SlotMark = iota
	MarkSkipped
	MarkCorrect
	MarkIncorrect
	MarkPending // answered but never graded
)

func (m SlotMark) String() string {
	switch m {
	case MarkSkipped:
		return "skipped"
	case MarkCorrect:
		return "correct"
	case MarkIncorrect:
		return "incorrect"
	case MarkPending:
		return "pending"
	}
	return "unanswered"
}

// Progress tracks answered and correct counts across a session.
type Progress struct {
	Total    int
	Current  int // 1-based position of the cursor
	Answered int
	Correct  int
	Skipped  int
	Accuracy float64 // Correct / Answered (computed)
}

// Record adds one slot's result to the progress.
func (p *Progress) Record(r *AnswerResult) {
	switch {
	case r == nil:
		return
	case r.Skipped:
		p.Skipped++
		return
	}
	p.Answered++
	if r.Correct() {
		p.Correct++
	}
	if p.Answered > 0 {
		p.Accuracy = float64(p.Correct) / float64(p.Answered)
	}
}

// ProgressOf computes the progress of a session.
func ProgressOf(st *State) Progress {
	p := Progress{Total: st.Len(), Current: st.CurrentIndex + 1}
	for _, r := range st.Results {
		p.Record(r)
	}
	return p
}

// Marks returns one mark per slot, in order.
func Marks(st *State) []SlotMark {
	marks := make([]SlotMark, len(st.Results))
	for i, r := range st.Results {
		switch {
		case r == nil:
			marks[i] = MarkUnanswered
		case r.Skipped:
			marks[i] = MarkSkipped
		case r.IsCorrect == nil:
			marks[i] = MarkPending
		case *r.IsCorrect:
			marks[i] = MarkCorrect
		default:
			marks[i] = MarkIncorrect
		}
	}
	return marks
}

// Progress returns the live progress of the engine's session.
func (e *Engine) Progress() Progress {
	return ProgressOf(e.state)
}

// Marks returns the navigation marks of the engine's session.
func (e *Engine) Marks() []SlotMark {
	return Marks(e.state)
}
