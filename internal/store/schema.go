package store

import (
	"database/sql"
	"fmt"
)

// applySchema creates all tables and indexes. Statements are idempotent so
// reopening an existing database is safe.
func applySchema(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			project_name TEXT,
			start_time TEXT NOT NULL,
			end_time TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			token_count INTEGER,
			file_path TEXT NOT NULL,
			file_hash TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(file_hash, file_path)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK(role IN ('user', 'assistant', 'system')),
			content TEXT NOT NULL CHECK(length(content) > 0),
			timestamp TEXT NOT NULL,
			token_count INTEGER,
			message_type TEXT NOT NULL DEFAULT 'simple_message',
			tool_calls TEXT,
			metadata TEXT,
			sequence_number INTEGER NOT NULL,
			UNIQUE(session_id, sequence_number)
		)`,
		`CREATE TABLE IF NOT EXISTS tool_operations (
			id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			tool_use_id TEXT NOT NULL,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			tool_name TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			file_path TEXT,
			file_extension TEXT,
			is_code_file INTEGER,
			is_config_file INTEGER,
			lines_before INTEGER,
			lines_after INTEGER,
			lines_added INTEGER,
			lines_removed INTEGER,
			content_size INTEGER,
			is_bulk_edit INTEGER,
			is_refactoring INTEGER,
			success INTEGER,
			result_summary TEXT,
			raw_input TEXT,
			raw_result TEXT,
			created_at TEXT NOT NULL,
			UNIQUE(message_id, tool_use_id)
		)`,
		`CREATE TABLE IF NOT EXISTS analytics_requests (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			created_by TEXT,
			error_message TEXT,
			custom_prompt TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS analytics (
			id TEXT PRIMARY KEY,
			analytics_request_id TEXT NOT NULL REFERENCES analytics_requests(id) ON DELETE CASCADE,
			session_id TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			metrics_json TEXT NOT NULL,
			qualitative_output_json TEXT NOT NULL,
			ai_quantitative_output_json TEXT NOT NULL,
			model_used TEXT,
			analysis_duration_ms INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS turn_summaries (
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			turn_number INTEGER NOT NULL,
			start_sequence INTEGER NOT NULL,
			end_sequence INTEGER NOT NULL,
			user_intent TEXT NOT NULL,
			assistant_action TEXT NOT NULL,
			summary TEXT NOT NULL,
			turn_type TEXT NOT NULL,
			key_topics_json TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			model_used TEXT,
			PRIMARY KEY(session_id, turn_number)
		)`,
		`CREATE TABLE IF NOT EXISTS flowcharts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			nodes_json TEXT NOT NULL,
			edges_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			token_usage INTEGER
		)`,
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_sessions_provider ON chat_sessions(provider)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_file_hash ON chat_sessions(file_hash)",
		"CREATE INDEX IF NOT EXISTS idx_messages_session_sequence ON messages(session_id, sequence_number)",
		"CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_tool_operations_session ON tool_operations(session_id, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_tool_operations_file ON tool_operations(file_path)",
		"CREATE INDEX IF NOT EXISTS idx_analytics_requests_session_status ON analytics_requests(session_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_analytics_request ON analytics(analytics_request_id)",
	}

	for _, stmt := range tables {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
