package store

import (
	"database/sql"
	"fmt"
)

// migrations create the server schema. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		memorization_tip TEXT NOT NULL DEFAULT '',
		knowledge_point TEXT NOT NULL DEFAULT '',
		exam_type TEXT NOT NULL DEFAULT 'N1',
		hash TEXT NOT NULL UNIQUE,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_knowledge_point ON questions (knowledge_point)`,
	`CREATE TABLE IF NOT EXISTS answer_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		selected_answer TEXT NOT NULL,
		is_correct INTEGER NOT NULL,
		quality INTEGER NOT NULL DEFAULT 0,
		attempted_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_answer_attempts_question ON answer_attempts (question_id)`,
	`CREATE TABLE IF NOT EXISTS review_items (
		question_id INTEGER PRIMARY KEY REFERENCES questions(id) ON DELETE CASCADE,
		review_count INTEGER NOT NULL DEFAULT 0,
		interval_days INTEGER NOT NULL DEFAULT 1,
		ease_factor INTEGER NOT NULL DEFAULT 250,
		next_review_at TEXT NOT NULL,
		last_reviewed_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_items_due ON review_items (next_review_at)`,
	`CREATE TABLE IF NOT EXISTS quiz_sessions (
		session_key TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		questions_json TEXT NOT NULL,
		results_json TEXT NOT NULL,
		current_index INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_logs (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		answered INTEGER NOT NULL,
		correct INTEGER NOT NULL,
		results_json TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS study_records (
		study_date TEXT PRIMARY KEY,
		questions_answered INTEGER NOT NULL DEFAULT 0,
		correct_answers INTEGER NOT NULL DEFAULT 0,
		sessions INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}
	return nil
}
