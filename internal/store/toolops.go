package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// ToolOperationRepo persists denormalized tool-call records and answers the
// aggregate queries the quantitative collector depends on.
type ToolOperationRepo struct {
	db *sql.DB
}

// NewToolOperationRepo creates a repository over the shared handle.
func NewToolOperationRepo(db *DB) *ToolOperationRepo {
	return &ToolOperationRepo{db: db.Handle()}
}

const toolOpColumns = `id, message_id, tool_use_id, session_id, tool_name, timestamp,
	file_path, file_extension, is_code_file, is_config_file,
	lines_before, lines_after, lines_added, lines_removed, content_size,
	is_bulk_edit, is_refactoring, success, result_summary,
	raw_input, raw_result, created_at`

const toolOpInsert = `INSERT INTO tool_operations (` + toolOpColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Create inserts one operation. (message_id, tool_use_id) is unique, so a
// replayed import fails instead of duplicating.
func (r *ToolOperationRepo) Create(ctx context.Context, op *models.ToolOperation) error {
	args, err := toolOpArgs(op)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, toolOpInsert, args...); err != nil {
		return fmt.Errorf("failed to create tool operation: %w", err)
	}
	return nil
}

// BulkCreate inserts all operations in one transaction; partial failure
// aborts and inserts zero rows.
func (r *ToolOperationRepo) BulkCreate(ctx context.Context, ops []*models.ToolOperation) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PrepareContext(ctx, toolOpInsert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		args, err := toolOpArgs(op)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to create tool operation in bulk: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID fetches one operation, returning nil when not found.
func (r *ToolOperationRepo) GetByID(ctx context.Context, id string) (*models.ToolOperation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+toolOpColumns+` FROM tool_operations WHERE id = ?`, id)
	op, err := scanToolOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tool operation: %w", err)
	}
	return op, nil
}

// GetBySession returns a session's operations in timestamp order.
func (r *ToolOperationRepo) GetBySession(ctx context.Context, sessionID string) ([]*models.ToolOperation, error) {
	return r.query(ctx,
		`SELECT `+toolOpColumns+` FROM tool_operations WHERE session_id = ? ORDER BY timestamp ASC`,
		sessionID)
}

// GetByMessage returns the operations extracted from one message.
func (r *ToolOperationRepo) GetByMessage(ctx context.Context, messageID string) ([]*models.ToolOperation, error) {
	return r.query(ctx,
		`SELECT `+toolOpColumns+` FROM tool_operations WHERE message_id = ? ORDER BY timestamp ASC`,
		messageID)
}

// GetFileOperations returns only operations that targeted a file.
func (r *ToolOperationRepo) GetFileOperations(ctx context.Context, sessionID string) ([]*models.ToolOperation, error) {
	return r.query(ctx,
		`SELECT `+toolOpColumns+` FROM tool_operations
		 WHERE session_id = ? AND file_path IS NOT NULL ORDER BY timestamp ASC`,
		sessionID)
}

// GetFileHistory returns every operation against one file path across
// sessions, oldest first.
func (r *ToolOperationRepo) GetFileHistory(ctx context.Context, filePath string) ([]*models.ToolOperation, error) {
	return r.query(ctx,
		`SELECT `+toolOpColumns+` FROM tool_operations WHERE file_path = ? ORDER BY timestamp ASC`,
		filePath)
}

// ToolCount is one row of the per-tool usage statistics.
type ToolCount struct {
	ToolName string
	Count    int
}

// GetToolUsageStats returns per-tool call counts, most used first.
func (r *ToolOperationRepo) GetToolUsageStats(ctx context.Context, sessionID string) ([]ToolCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tool_name, COUNT(*) as count
		FROM tool_operations
		WHERE session_id = ?
		GROUP BY tool_name
		ORDER BY count DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tool usage statistics: %w", err)
	}
	defer rows.Close()

	var stats []ToolCount
	for rows.Next() {
		var tc ToolCount
		if err := rows.Scan(&tc.ToolName, &tc.Count); err != nil {
			return nil, err
		}
		stats = append(stats, tc)
	}
	return stats, rows.Err()
}

// GetFileTypeStats returns (code, config, other) file-operation counts.
func (r *ToolOperationRepo) GetFileTypeStats(ctx context.Context, sessionID string) (code, config, other int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_code_file = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_config_file = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN COALESCE(is_code_file, 0) = 0 AND COALESCE(is_config_file, 0) = 0 THEN 1 ELSE 0 END), 0)
		FROM tool_operations
		WHERE session_id = ? AND file_path IS NOT NULL`, sessionID)
	if err := row.Scan(&code, &config, &other); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to fetch file type statistics: %w", err)
	}
	return code, config, other, nil
}

// GetTotalLineChanges returns the session's (added, removed) line totals.
func (r *ToolOperationRepo) GetTotalLineChanges(ctx context.Context, sessionID string) (added, removed int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(lines_added), 0), COALESCE(SUM(lines_removed), 0)
		FROM tool_operations
		WHERE session_id = ?`, sessionID)
	if err := row.Scan(&added, &removed); err != nil {
		return 0, 0, fmt.Errorf("failed to fetch total line changes: %w", err)
	}
	return added, removed, nil
}

// ModifiedFile is one row of the most-modified-files ranking.
type ModifiedFile struct {
	FilePath          string
	ModificationCount int
	TotalLinesAdded   int
	TotalLinesRemoved int
}

// GetMostModifiedFiles ranks Write/Edit targets by modification count.
func (r *ToolOperationRepo) GetMostModifiedFiles(ctx context.Context, sessionID string, limit int) ([]ModifiedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			file_path,
			COUNT(*) as modification_count,
			COALESCE(SUM(lines_added), 0) as total_lines_added,
			COALESCE(SUM(lines_removed), 0) as total_lines_removed
		FROM tool_operations
		WHERE session_id = ?
		  AND file_path IS NOT NULL
		  AND tool_name IN ('Write', 'Edit')
		GROUP BY file_path
		ORDER BY modification_count DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch most modified files: %w", err)
	}
	defer rows.Close()

	var results []ModifiedFile
	for rows.Next() {
		var mf ModifiedFile
		if err := rows.Scan(&mf.FilePath, &mf.ModificationCount, &mf.TotalLinesAdded, &mf.TotalLinesRemoved); err != nil {
			return nil, err
		}
		results = append(results, mf)
	}
	return results, rows.Err()
}

// DeleteBySession removes a session's operations, returning the count.
func (r *ToolOperationRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tool_operations WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tool operations: %w", err)
	}
	return res.RowsAffected()
}

// CountBySession returns the number of operations in a session.
func (r *ToolOperationRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tool_operations WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tool operations: %w", err)
	}
	return n, nil
}

func (r *ToolOperationRepo) query(ctx context.Context, q string, arg any) ([]*models.ToolOperation, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tool operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.ToolOperation
	for rows.Next() {
		op, err := scanToolOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func toolOpArgs(op *models.ToolOperation) ([]any, error) {
	rawInput, err := marshalOptional(op.RawInput)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize raw input: %w", err)
	}
	rawResult, err := marshalOptional(op.RawResult)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize raw result: %w", err)
	}

	return []any{
		op.ID, op.MessageID, op.ToolUseID, op.SessionID, op.ToolName,
		formatTime(op.Timestamp),
		op.FilePath, op.FileExtension, op.IsCodeFile, op.IsConfigFile,
		op.LinesBefore, op.LinesAfter, op.LinesAdded, op.LinesRemoved, op.ContentSize,
		op.IsBulkEdit, op.IsRefactoring, op.Success, op.ResultSummary,
		rawInput, rawResult, formatTime(op.CreatedAt),
	}, nil
}

func marshalOptional(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func scanToolOperation(row rowScanner) (*models.ToolOperation, error) {
	var (
		op                  models.ToolOperation
		ts, createdAt       string
		rawInput, rawResult *string
	)
	if err := row.Scan(&op.ID, &op.MessageID, &op.ToolUseID, &op.SessionID,
		&op.ToolName, &ts,
		&op.FilePath, &op.FileExtension, &op.IsCodeFile, &op.IsConfigFile,
		&op.LinesBefore, &op.LinesAfter, &op.LinesAdded, &op.LinesRemoved, &op.ContentSize,
		&op.IsBulkEdit, &op.IsRefactoring, &op.Success, &op.ResultSummary,
		&rawInput, &rawResult, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if op.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	if op.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	if rawInput != nil && *rawInput != "" {
		_ = json.Unmarshal([]byte(*rawInput), &op.RawInput)
	}
	if rawResult != nil && *rawResult != "" {
		_ = json.Unmarshal([]byte(*rawResult), &op.RawResult)
	}

	return &op, nil
}
