package session

import (
	"context"
	"fmt"
)

// ChooseQuality records a recall quality for the current review item
// before its answer is submitted. The quality is sent with the answer.
func (e *Engine) ChooseQuality(q Quality) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.Current().IsReview {
		return ErrNotReviewItem
	}
	if !q.Valid() {
		return fmt.Errorf("%w: quality %d", ErrInvalidTransition, int(q))
	}
	if e.slot == SlotGraded || e.slot == SlotAdvanced {
		return fmt.Errorf("%w: quality already applies to a graded answer, use Rate", ErrInvalidTransition)
	}
	e.quality = q
	return nil
}

// Rate submits a recall quality for a graded review item and advances.
// The scheduler is called exactly once per successful rating; on failure
// the slot stays graded so the rating can be retried.
func (e *Engine) Rate(ctx context.Context, q Quality) (Outcome, error) {
	if err := e.check(); err != nil {
		return OutcomeNone, err
	}
	cur := e.Current()
	if !cur.IsReview {
		return OutcomeNone, ErrNotReviewItem
	}
	if !q.Valid() {
		return OutcomeNone, fmt.Errorf("%w: quality %d", ErrInvalidTransition, int(q))
	}
	if e.slot != SlotGraded {
		return OutcomeNone, fmt.Errorf("%w: rate while %s", ErrInvalidTransition, e.slot)
	}
	res := e.CurrentResult()
	if res.Quality != 0 {
		// Already counted with the submission.
		return e.advance(ctx)
	}

	if err := e.backend.SubmitQuality(ctx, cur.ID, q); err != nil {
		e.logger.Warn("review feedback failed", "question_id", cur.ID, "quality", int(q), "err", err)
		return OutcomeNone, fmt.Errorf("%w: %w", ErrFeedbackFailed, err)
	}
	res.Quality = q
	e.quality = q
	return e.advance(ctx)
}
