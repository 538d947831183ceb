package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const tableReviews = "review_items"

var reviewColumns = []string{
	"question_id", "review_count", "interval_days", "ease_factor",
	"next_review_at", "last_reviewed_at",
}

type reviewRepo struct {
	db querier
}

func scanReview(row rowScanner) (ReviewItem, error) {
	var (
		it         ReviewItem
		next, last string
	)
	if err := row.Scan(&it.QuestionID, &it.ReviewCount, &it.IntervalDays, &it.EaseFactor, &next, &last); err != nil {
		return it, err
	}
	var err error
	if it.NextReviewAt, err = parseTime(next); err != nil {
		return it, fmt.Errorf("parse next_review_at: %w", err)
	}
	if it.LastReviewedAt, err = parseTime(last); err != nil {
		return it, fmt.Errorf("parse last_reviewed_at: %w", err)
	}
	return it, nil
}

func (r *reviewRepo) query(ctx context.Context, sel *entsql.Selector) ([]ReviewItem, error) {
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query review items: %w", err)
	}
	defer rows.Close()

	var out []ReviewItem
	for rows.Next() {
		it, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *reviewRepo) Get(ctx context.Context, questionID int64) (*ReviewItem, error) {
	query, args := builder.Select(reviewColumns...).
		From(builder.Table(tableReviews)).
		Where(entsql.EQ("question_id", questionID)).
		Query()
	it, err := scanReview(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review item: %w", err)
	}
	return &it, nil
}

func (r *reviewRepo) Put(ctx context.Context, it ReviewItem) error {
	last := ""
	if !it.LastReviewedAt.IsZero() {
		last = formatTime(it.LastReviewedAt)
	}
	query, args := builder.Insert(tableReviews).
		Columns(reviewColumns...).
		Values(it.QuestionID, it.ReviewCount, it.IntervalDays, it.EaseFactor,
			formatTime(it.NextReviewAt), last).
		OnConflict(
			entsql.ConflictColumns("question_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put review item: %w", err)
	}
	return nil
}

func (r *reviewRepo) Due(ctx context.Context, now time.Time, limit int) ([]ReviewItem, error) {
	sel := builder.Select(reviewColumns...).
		From(builder.Table(tableReviews)).
		Where(entsql.LTE("next_review_at", formatTime(now))).
		OrderBy("next_review_at")
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.query(ctx, sel)
}

func (r *reviewRepo) All(ctx context.Context, limit int) ([]ReviewItem, error) {
	sel := builder.Select(reviewColumns...).
		From(builder.Table(tableReviews)).
		OrderBy("next_review_at")
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.query(ctx, sel)
}

func (r *reviewRepo) Count(ctx context.Context) (int, error) {
	query, args := builder.Select(entsql.Count("*")).From(builder.Table(tableReviews)).Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count review items: %w", err)
	}
	return n, nil
}
