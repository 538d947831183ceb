package spacedrep

import "github.com/abhisek/examiz/internal/store"

// FromItem converts a stored queue entry to a review state.
func FromItem(it store.ReviewItem) *ReviewState {
	rs := &ReviewState{
		QuestionID:     it.QuestionID,
		ReviewCount:    it.ReviewCount,
		IntervalDays:   it.IntervalDays,
		EaseFactor:     it.EaseFactor,
		NextReviewAt:   it.NextReviewAt,
		LastReviewedAt: it.LastReviewedAt,
	}
	if rs.EaseFactor == 0 {
		rs.EaseFactor = InitialEase
	}
	return rs
}

// Item converts the state for storage.
func (rs *ReviewState) Item() store.ReviewItem {
	return store.ReviewItem{
		QuestionID:     rs.QuestionID,
		ReviewCount:    rs.ReviewCount,
		IntervalDays:   rs.IntervalDays,
		EaseFactor:     rs.EaseFactor,
		NextReviewAt:   rs.NextReviewAt,
		LastReviewedAt: rs.LastReviewedAt,
	}
}

func fromItems(items []store.ReviewItem) []*ReviewState {
	out := make([]*ReviewState, len(items))
	for i, it := range items {
		out[i] = FromItem(it)
	}
	return out
}
