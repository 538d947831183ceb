package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/examiz/internal/session"
)

const tableQuestions = "questions"

var questionColumns = []string{
	"id", "content", "options", "correct_answer", "explanation",
	"memorization_tip", "knowledge_point", "is_favorite",
}

type questionRepo struct {
	db  *sql.DB
	now func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (session.Question, error) {
	var (
		q       session.Question
		options string
		fav     int
	)
	err := row.Scan(&q.ID, &q.Content, &options, &q.CorrectAnswer, &q.Explanation,
		&q.MemorizationTip, &q.KnowledgePoint, &fav)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("question %d options: %w", q.ID, err)
	}
	q.IsFavorite = fav != 0
	if q.KnowledgePoint == "" {
		q.KnowledgePoint = session.DefaultKnowledgePoint
	}
	return q, nil
}

func scanQuestions(rows *sql.Rows) ([]session.Question, error) {
	defer rows.Close()
	var out []session.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *questionRepo) Save(ctx context.Context, qs []session.Question) ([]session.Question, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	out := make([]session.Question, len(qs))
	inserted := 0
	now := formatTime(r.now())
	for i, q := range qs {
		hash := session.ContentHash(q.Content, q.Options)

		var id int64
		query, args := builder.Select("id").
			From(builder.Table(tableQuestions)).
			Where(entsql.EQ("hash", hash)).
			Query()
		err := tx.QueryRowContext(ctx, query, args...).Scan(&id)
		switch {
		case err == nil:
		case errors.Is(err, sql.ErrNoRows):
			opts, err := json.Marshal(q.Options)
			if err != nil {
				return nil, 0, fmt.Errorf("encode options: %w", err)
			}
			query, args := builder.Insert(tableQuestions).
				Columns("content", "options", "correct_answer", "explanation",
					"memorization_tip", "knowledge_point", "hash", "created_at").
				Values(q.Content, string(opts), q.CorrectAnswer, q.Explanation,
					q.MemorizationTip, q.KnowledgePoint, hash, now).
				Query()
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return nil, 0, fmt.Errorf("insert question: %w", err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return nil, 0, fmt.Errorf("insert question id: %w", err)
			}
			inserted++
		default:
			return nil, 0, fmt.Errorf("lookup question hash: %w", err)
		}
		q.ID = id
		out[i] = q
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	return out, inserted, nil
}

func (r *questionRepo) Get(ctx context.Context, id int64) (*session.Question, error) {
	query, args := builder.Select(questionColumns...).
		From(builder.Table(tableQuestions)).
		Where(entsql.EQ("id", id)).
		Query()
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return &q, nil
}

func (r *questionRepo) List(ctx context.Context, f QuestionFilter) ([]session.Question, error) {
	sel := builder.Select(questionColumns...).From(builder.Table(tableQuestions))
	if f.KnowledgePoint != "" {
		sel.Where(entsql.EQ("knowledge_point", f.KnowledgePoint))
	}
	if f.FavoritesOnly {
		sel.Where(entsql.EQ("is_favorite", 1))
	}
	sel.OrderBy(entsql.Desc("id"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return scanQuestions(rows)
}

func (r *questionRepo) ByIDs(ctx context.Context, ids []int64) ([]session.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := builder.Select(questionColumns...).
		From(builder.Table(tableQuestions)).
		Where(entsql.In("id", int64Args(ids)...)).
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("questions by id: %w", err)
	}
	found, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]session.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]session.Question, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *questionRepo) NeverCorrect(ctx context.Context, limit int, exclude []int64) ([]session.Question, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + strings.Join(questionColumns, ", ") + ` FROM questions q
		WHERE NOT EXISTS (
			SELECT 1 FROM answer_attempts a WHERE a.question_id = q.id AND a.is_correct = 1
		)`)
	args := int64Args(exclude)
	if len(exclude) > 0 {
		b.WriteString(" AND q.id NOT IN (" + placeholders(len(exclude)) + ")")
	}
	b.WriteString(" ORDER BY q.id LIMIT ?")
	args = append(args, limitArg(limit))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("never-correct questions: %w", err)
	}
	return scanQuestions(rows)
}

func (r *questionRepo) InKnowledgePoints(ctx context.Context, points []string, limit int) ([]session.Question, error) {
	if len(points) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(points)+1)
	for _, p := range points {
		args = append(args, p)
	}
	args = append(args, limitArg(limit))
	query := `SELECT ` + strings.Join(questionColumns, ", ") + ` FROM questions
		WHERE knowledge_point IN (` + placeholders(len(points)) + `)
		ORDER BY RANDOM() LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("questions by knowledge point: %w", err)
	}
	return scanQuestions(rows)
}

func (r *questionRepo) KnowledgePointStats(ctx context.Context) ([]KnowledgePointStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT q.knowledge_point,
			COUNT(DISTINCT q.id),
			COUNT(DISTINCT q.id) - COUNT(DISTINCT a.question_id),
			COUNT(a.id),
			COALESCE(SUM(a.is_correct), 0)
		FROM questions q
		LEFT JOIN answer_attempts a ON a.question_id = q.id
		GROUP BY q.knowledge_point
		ORDER BY q.knowledge_point`)
	if err != nil {
		return nil, fmt.Errorf("knowledge point stats: %w", err)
	}
	defer rows.Close()

	var out []KnowledgePointStat
	for rows.Next() {
		var s KnowledgePointStat
		if err := rows.Scan(&s.Name, &s.Questions, &s.Unanswered, &s.Attempts, &s.Correct); err != nil {
			return nil, fmt.Errorf("scan knowledge point stats: %w", err)
		}
		if s.Name == "" {
			s.Name = session.DefaultKnowledgePoint
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *questionRepo) Delete(ctx context.Context, id int64) error {
	query, args := builder.Delete(tableQuestions).Where(entsql.EQ("id", id)).Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *questionRepo) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	var fav int
	err := r.db.QueryRowContext(ctx,
		`UPDATE questions SET is_favorite = 1 - is_favorite WHERE id = ? RETURNING is_favorite`, id,
	).Scan(&fav)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return fav != 0, nil
}

func (r *questionRepo) Count(ctx context.Context) (int, error) {
	query, args := builder.Select(entsql.Count("*")).From(builder.Table(tableQuestions)).Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// limitArg maps "no limit" to SQLite's -1.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
