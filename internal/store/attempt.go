package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const tableAttempts = "answer_attempts"

type attemptRepo struct {
	db  querier
	now func() time.Time
}

func (r *attemptRepo) Record(ctx context.Context, a Attempt) error {
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = r.now()
	}
	query, args := builder.Insert(tableAttempts).
		Columns("question_id", "selected_answer", "is_correct", "quality", "attempted_at").
		Values(a.QuestionID, a.SelectedAnswer, boolInt(a.IsCorrect), a.Quality, formatTime(a.AttemptedAt)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (r *attemptRepo) ForQuestion(ctx context.Context, questionID int64) ([]Attempt, error) {
	query, args := builder.Select("question_id", "selected_answer", "is_correct", "quality", "attempted_at").
		From(builder.Table(tableAttempts)).
		Where(entsql.EQ("question_id", questionID)).
		OrderBy("id").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a       Attempt
			correct int
			at      string
		)
		if err := rows.Scan(&a.QuestionID, &a.SelectedAnswer, &correct, &a.Quality, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.IsCorrect = correct != 0
		if a.AttemptedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parse attempt time: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
