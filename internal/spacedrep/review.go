package spacedrep

import "time"

// ReviewState holds the spaced repetition state for a single question.
type ReviewState struct {
	QuestionID     int64     `json:"question_id"`
	ReviewCount    int       `json:"review_count"`
	IntervalDays   int       `json:"interval_days"`
	EaseFactor     int       `json:"ease_factor"`
	NextReviewAt   time.Time `json:"next_review_at"`
	LastReviewedAt time.Time `json:"last_reviewed_at"`
}

// IsDue returns true if the question is due for review (at or past the review date).
func (rs *ReviewState) IsDue(now time.Time) bool {
	return !now.Before(rs.NextReviewAt)
}

// OverdueDays returns how many days past due the question is. Returns 0 if not yet due.
func (rs *ReviewState) OverdueDays(now time.Time) float64 {
	if now.Before(rs.NextReviewAt) {
		return 0
	}
	return now.Sub(rs.NextReviewAt).Hours() / 24.0
}

// IsOverdueThreshold returns true once the question is past its review
// date by more than half its interval.
func (rs *ReviewState) IsOverdueThreshold(now time.Time) bool {
	if !rs.IsDue(now) {
		return false
	}
	graceHours := float64(rs.IntervalDays) * 0.5 * 24.0
	threshold := rs.NextReviewAt.Add(time.Duration(graceHours * float64(time.Hour)))
	return now.After(threshold)
}

// ReviewStatus describes a question's review status for display.
type ReviewStatus string

const (
	ReviewNotDue  ReviewStatus = "not_due"
	ReviewDue     ReviewStatus = "due"
	ReviewOverdue ReviewStatus = "overdue"
)

// Status returns the review status for display.
func (rs *ReviewState) Status(now time.Time) ReviewStatus {
	if rs.IsOverdueThreshold(now) {
		return ReviewOverdue
	}
	if rs.IsDue(now) {
		return ReviewDue
	}
	return ReviewNotDue
}

// DaysUntilReview returns the number of days until the next review.
// Returns 0 if already due.
func (rs *ReviewState) DaysUntilReview(now time.Time) int {
	if rs.IsDue(now) {
		return 0
	}
	return int(rs.NextReviewAt.Sub(now).Hours()/24.0) + 1
}
