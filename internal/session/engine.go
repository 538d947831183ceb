package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// SlotState is the per-question phase of the quiz state machine.
type SlotState int

const (
	SlotHidden   SlotState = iota // Review item, options not shown yet
	SlotRevealed                  // Options visible, nothing submitted
	SlotAnswered                  // Submitted, awaiting a grading result
	SlotGraded                    // Result and explanation visible
	SlotAdvanced                  // Left; transient before the cursor moves
)

func (s SlotState) String() string {
	switch s {
	case SlotHidden:
		return "hidden"
	case SlotRevealed:
		return "revealed"
	case SlotAnswered:
		return "answered"
	case SlotGraded:
		return "graded"
	case SlotAdvanced:
		return "advanced"
	}
	return "unknown"
}

// Outcome describes the effect of an engine operation.
type Outcome int

const (
	OutcomeNone       Outcome = iota // Nothing changed
	OutcomeUpdated                   // Session state changed
	OutcomeGraded                    // The current slot received a result
	OutcomeAdvanced                  // The cursor moved to the next slot
	OutcomeFinished                  // Session completed and recorded
	OutcomeDiscarded                 // Session ended without a record
	OutcomeTerminated                // Last question was deleted
)

// Ended reports whether the outcome closed the session.
func (o Outcome) Ended() bool {
	return o == OutcomeFinished || o == OutcomeDiscarded || o == OutcomeTerminated
}

// Engine drives one loaded session through the quiz state machine. Every
// state change is pushed through the Reconciler before the operation
// returns. An Engine is not safe for concurrent use.
type Engine struct {
	rec     *Reconciler
	backend Backend
	logger  *slog.Logger

	state    *State
	slot     SlotState
	selected string
	quality  Quality
	closed   bool
}

// NewEngine wraps a loaded or freshly started session.
func NewEngine(rec *Reconciler, st *State, backend Backend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		rec:     rec,
		backend: backend,
		logger:  logger,
		state:   st,
	}
	e.enterSlot()
	return e
}

// State returns the live session. Callers must not modify it.
func (e *Engine) State() *State {
	return e.state
}

// Current returns the question under the cursor.
func (e *Engine) Current() Question {
	return e.state.Current()
}

// CurrentResult returns the result recorded for the current slot, if any.
func (e *Engine) CurrentResult() *AnswerResult {
	return e.state.Results[e.state.CurrentIndex]
}

// SlotState returns the phase of the current slot.
func (e *Engine) SlotState() SlotState {
	return e.slot
}

// Selected returns the option currently picked for the slot.
func (e *Engine) Selected() string {
	return e.selected
}

// PendingQuality returns the quality chosen before submission, or zero.
func (e *Engine) PendingQuality() Quality {
	return e.quality
}

// Closed reports whether the session has ended.
func (e *Engine) Closed() bool {
	return e.closed
}

// enterSlot derives the slot phase for the cursor position from the
// stored result, so resumed and jumped-to slots land in the right phase.
func (e *Engine) enterSlot() {
	e.selected = ""
	e.quality = 0
	q := e.state.Current()
	r := e.state.Results[e.state.CurrentIndex]
	switch {
	case r.Graded():
		e.slot = SlotGraded
		e.selected = r.SelectedAnswer
		e.quality = r.Quality
	case q.IsReview:
		e.slot = SlotHidden
	default:
		e.slot = SlotRevealed
	}
}

func (e *Engine) check() error {
	if e.closed {
		return ErrSessionClosed
	}
	return nil
}

// Reveal shows the options of a hidden review item.
func (e *Engine) Reveal(ctx context.Context) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	if e.slot != SlotHidden {
		return OutcomeNone, nil
	}
	e.slot = SlotRevealed
	return OutcomeUpdated, nil
}

// Select picks an option for the current slot. Selection can change until
// the answer is graded.
func (e *Engine) Select(key string) error {
	if err := e.check(); err != nil {
		return err
	}
	switch e.slot {
	case SlotRevealed, SlotAnswered:
	default:
		return fmt.Errorf("%w: select while %s", ErrInvalidTransition, e.slot)
	}
	if !e.Current().Options.Has(key) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, key)
	}
	e.selected = key
	return nil
}

// Submit grades the selected option. Submitting without a selection is a
// no-op. If a quality was chosen for a review item it travels with the
// submission and the slot advances once graded. On a grading failure the
// slot stays answered and the caller may retry.
func (e *Engine) Submit(ctx context.Context) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	switch e.slot {
	case SlotHidden:
		return OutcomeNone, fmt.Errorf("%w: submit before reveal", ErrInvalidTransition)
	case SlotGraded, SlotAdvanced:
		return OutcomeNone, nil
	}
	if e.selected == "" {
		return OutcomeNone, nil
	}

	q := e.Current()
	e.slot = SlotAnswered

	var quality *Quality
	if q.IsReview && e.quality.Valid() {
		qv := e.quality
		quality = &qv
	}

	res, err := e.backend.SubmitAnswer(ctx, q.ID, e.selected, quality)
	if err != nil {
		e.logger.Warn("grading failed", "question_id", q.ID, "err", err)
		return OutcomeNone, fmt.Errorf("%w: %w", ErrGradingFailed, err)
	}

	correct := res.IsCorrect
	result := &AnswerResult{
		QuestionID:     q.ID,
		SelectedAnswer: e.selected,
		IsCorrect:      &correct,
		Details: &ResultDetails{
			CorrectAnswer:   res.CorrectAnswer,
			Explanation:     res.Explanation,
			MemorizationTip: res.MemorizationTip,
		},
	}
	if quality != nil {
		result.Quality = *quality
	}
	e.state.Results[e.state.CurrentIndex] = result
	e.slot = SlotGraded

	if quality != nil {
		return e.advance(ctx)
	}
	if err := e.persist(ctx); err != nil {
		return OutcomeGraded, err
	}
	return OutcomeGraded, nil
}

// Next leaves a graded slot. Review items must be rated first.
func (e *Engine) Next(ctx context.Context) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	if e.slot != SlotGraded {
		return OutcomeNone, nil
	}
	if e.Current().IsReview && e.CurrentResult().Quality == 0 {
		return OutcomeNone, ErrQualityRequired
	}
	return e.advance(ctx)
}

// Skip records the current slot as skipped and advances. Graded slots
// cannot be skipped.
func (e *Engine) Skip(ctx context.Context) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	if e.slot == SlotGraded || e.slot == SlotAdvanced {
		return OutcomeNone, nil
	}
	e.state.Results[e.state.CurrentIndex] = &AnswerResult{
		QuestionID: e.Current().ID,
		Skipped:    true,
	}
	return e.advance(ctx)
}

// Jump moves the cursor to slot i.
func (e *Engine) Jump(ctx context.Context, i int) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	if i < 0 || i >= e.state.Len() {
		return OutcomeNone, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	e.state.CurrentIndex = i
	e.enterSlot()
	if err := e.persist(ctx); err != nil {
		return OutcomeUpdated, err
	}
	return OutcomeUpdated, nil
}

// DeleteCurrent deletes the question under the cursor.
func (e *Engine) DeleteCurrent(ctx context.Context) (Outcome, error) {
	return e.Delete(ctx, e.state.CurrentIndex)
}

// Delete removes question i from the bank and from the session. The
// session is unchanged if the backend refuses. Deleting the last
// remaining question ends the session without recording it.
func (e *Engine) Delete(ctx context.Context, i int) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	if i < 0 || i >= e.state.Len() {
		return OutcomeNone, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	qid := e.state.Questions[i].ID
	if err := e.backend.DeleteQuestion(ctx, qid); err != nil {
		return OutcomeNone, fmt.Errorf("%w: %w", ErrDeleteQuestionFailed, err)
	}

	e.state.Questions = slices.Delete(e.state.Questions, i, i+1)
	e.state.Results = slices.Delete(e.state.Results, i, i+1)
	if e.state.Len() == 0 {
		e.teardown(ctx)
		return OutcomeTerminated, nil
	}

	cur := e.state.CurrentIndex
	switch {
	case i < cur:
		e.state.CurrentIndex--
	case i == cur:
		if cur >= e.state.Len() {
			e.state.CurrentIndex = e.state.Len() - 1
		}
		e.enterSlot()
	}
	if err := e.persist(ctx); err != nil {
		return OutcomeUpdated, err
	}
	return OutcomeUpdated, nil
}

// ToggleFavorite flips the favorite flag of the current question and
// returns the new value.
func (e *Engine) ToggleFavorite(ctx context.Context) (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	i := e.state.CurrentIndex
	fav, err := e.backend.ToggleFavorite(ctx, e.state.Questions[i].ID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFavoriteFailed, err)
	}
	e.state.Questions[i].IsFavorite = fav
	if err := e.persist(ctx); err != nil {
		return fav, err
	}
	return fav, nil
}

// QuitReport tells the caller whether leaving now could lose progress.
type QuitReport struct {
	NeedsConfirmation bool
	SyncErr           error
}

// Quit prepares to leave the session without ending it. It waits for
// queued remote writes, bounded by ctx, and asks for confirmation only
// when progress is not known to be stored everywhere.
func (e *Engine) Quit(ctx context.Context) QuitReport {
	if e.closed {
		return QuitReport{}
	}
	if err := e.rec.Flush(ctx); err != nil {
		e.logger.Debug("quit before remote flush finished", "err", err)
	}
	return QuitReport{
		NeedsConfirmation: e.rec.Unsynced(),
		SyncErr:           e.rec.SyncErr(),
	}
}

// Discard ends the session without recording it.
func (e *Engine) Discard(ctx context.Context) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	e.teardown(ctx)
	return OutcomeDiscarded, nil
}

// Complete ends the session. When at least one question was answered the
// results are recorded first; if recording fails the session is kept so
// the caller can retry.
func (e *Engine) Complete(ctx context.Context) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	answered := e.state.AnsweredResults()
	if len(answered) == 0 {
		e.teardown(ctx)
		return OutcomeDiscarded, nil
	}
	if err := e.backend.FinishSession(ctx, e.state.Topic, answered); err != nil {
		e.logger.Warn("finish session failed", "topic", e.state.Topic, "err", err)
		return OutcomeNone, fmt.Errorf("%w: %w", ErrFinishFailed, err)
	}
	e.teardown(ctx)
	return OutcomeFinished, nil
}

// advance leaves the current slot and moves the cursor, completing the
// session after the last slot.
func (e *Engine) advance(ctx context.Context) (Outcome, error) {
	prev := e.slot
	e.slot = SlotAdvanced
	if e.state.CurrentIndex >= e.state.Len()-1 {
		if err := e.persist(ctx); err != nil {
			e.logger.Warn("persist before completion failed", "err", err)
		}
		out, err := e.Complete(ctx)
		if err != nil {
			// Stay on the slot so the same action retries completion.
			e.slot = prev
		}
		return out, err
	}
	e.state.CurrentIndex++
	e.enterSlot()
	if err := e.persist(ctx); err != nil {
		return OutcomeAdvanced, err
	}
	return OutcomeAdvanced, nil
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.rec.Push(ctx, e.state); err != nil {
		e.logger.Warn("persist session failed", "err", err)
		return err
	}
	return nil
}

func (e *Engine) teardown(ctx context.Context) {
	e.closed = true
	if err := e.rec.Teardown(ctx); err != nil {
		e.logger.Warn("session teardown failed", "err", err)
	}
}
