package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	tableSessionLogs  = "session_logs"
	tableStudyRecords = "study_records"
)

type historyRepo struct {
	db *sql.DB
}

func (r *historyRepo) AppendLog(ctx context.Context, log SessionLog) error {
	results, err := json.Marshal(log.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query, args := builder.Insert(tableSessionLogs).
		Columns("id", "topic", "answered", "correct", "results_json", "finished_at").
		Values(log.ID, log.Topic, log.Answered, log.Correct, string(results), formatTime(log.FinishedAt)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO study_records (study_date, questions_answered, correct_answers, sessions)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (study_date) DO UPDATE SET
			questions_answered = questions_answered + excluded.questions_answered,
			correct_answers = correct_answers + excluded.correct_answers,
			sessions = sessions + 1`,
		log.FinishedAt.UTC().Format("2006-01-02"), log.Answered, log.Correct)
	if err != nil {
		return fmt.Errorf("update study record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *historyRepo) Logs(ctx context.Context, limit int) ([]SessionLog, error) {
	sel := builder.Select("id", "topic", "answered", "correct", "results_json", "finished_at").
		From(builder.Table(tableSessionLogs)).
		OrderBy(entsql.Desc("finished_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session logs: %w", err)
	}
	defer rows.Close()

	var out []SessionLog
	for rows.Next() {
		var (
			l        SessionLog
			results  string
			finished string
		)
		if err := rows.Scan(&l.ID, &l.Topic, &l.Answered, &l.Correct, &results, &finished); err != nil {
			return nil, fmt.Errorf("scan session log: %w", err)
		}
		if err := json.Unmarshal([]byte(results), &l.Results); err != nil {
			return nil, fmt.Errorf("decode session log %s: %w", l.ID, err)
		}
		if l.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *historyRepo) StudyRecords(ctx context.Context, limit int) ([]StudyRecord, error) {
	sel := builder.Select("study_date", "questions_answered", "correct_answers", "sessions").
		From(builder.Table(tableStudyRecords)).
		OrderBy(entsql.Desc("study_date"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query study records: %w", err)
	}
	defer rows.Close()

	var out []StudyRecord
	for rows.Next() {
		var rec StudyRecord
		if err := rows.Scan(&rec.Date, &rec.QuestionsAnswered, &rec.CorrectAnswers, &rec.Sessions); err != nil {
			return nil, fmt.Errorf("scan study record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
