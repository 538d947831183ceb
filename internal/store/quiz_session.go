package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/examiz/internal/session"
)

const tableQuizSessions = "quiz_sessions"

type sessionRepo struct {
	db  *sql.DB
	now func() time.Time
}

func (r *sessionRepo) Get(ctx context.Context, key string) (*session.State, error) {
	query, args := builder.Select("topic", "questions_json", "results_json", "current_index", "updated_at").
		From(builder.Table(tableQuizSessions)).
		Where(entsql.EQ("session_key", key)).
		Query()

	var (
		st                 session.State
		questions, results string
		updated            string
	)
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&st.Topic, &questions, &results, &st.CurrentIndex, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal([]byte(questions), &st.Questions); err != nil {
		return nil, fmt.Errorf("%w: questions: %v", session.ErrMalformedState, err)
	}
	if err := json.Unmarshal([]byte(results), &st.Results); err != nil {
		return nil, fmt.Errorf("%w: results: %v", session.ErrMalformedState, err)
	}
	if st.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("%w: updated_at: %v", session.ErrMalformedState, err)
	}
	return &st, nil
}

func (r *sessionRepo) Put(ctx context.Context, key string, snap session.Snapshot) (time.Time, error) {
	questions, err := json.Marshal(snap.Questions)
	if err != nil {
		return time.Time{}, fmt.Errorf("encode questions: %w", err)
	}
	results, err := json.Marshal(snap.Results)
	if err != nil {
		return time.Time{}, fmt.Errorf("encode results: %w", err)
	}

	now := r.now().UTC()
	query, args := builder.Insert(tableQuizSessions).
		Columns("session_key", "topic", "questions_json", "results_json", "current_index", "updated_at").
		Values(key, snap.Topic, string(questions), string(results), snap.CurrentIndex, formatTime(now)).
		OnConflict(
			entsql.ConflictColumns("session_key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return time.Time{}, fmt.Errorf("put session: %w", err)
	}
	return now, nil
}

func (r *sessionRepo) Delete(ctx context.Context, key string) error {
	query, args := builder.Delete(tableQuizSessions).Where(entsql.EQ("session_key", key)).Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
