package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// SessionRepo persists chat sessions.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a repository over the shared handle.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db.Handle()}
}

const sessionColumns = `id, provider, project_name, start_time, end_time, message_count,
	token_count, file_path, file_hash, state, created_at, updated_at`

// Create inserts a session.
func (r *SessionRepo) Create(ctx context.Context, s *models.ChatSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, string(s.Provider), s.ProjectName, formatTime(s.StartTime),
		formatOptionalTime(s.EndTime), s.MessageCount, s.TokenCount,
		s.FilePath, s.FileHash, string(s.State),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID fetches a session, returning nil when not found.
// The id must be a valid UUID string.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*models.ChatSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session ID %q: %w", id, err)
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return session, nil
}

// GetAll lists all sessions, most recent first.
func (r *SessionRepo) GetAll(ctx context.Context) ([]*models.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Update rewrites the mutable session columns.
func (r *SessionRepo) Update(ctx context.Context, s *models.ChatSession) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET provider = ?, project_name = ?, start_time = ?, end_time = ?,
		    message_count = ?, token_count = ?, file_path = ?, file_hash = ?,
		    state = ?, updated_at = ?
		WHERE id = ?`,
		string(s.Provider), s.ProjectName, formatTime(s.StartTime),
		formatOptionalTime(s.EndTime), s.MessageCount, s.TokenCount,
		s.FilePath, s.FileHash, string(s.State), formatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete removes a session; messages, operations, requests and summaries
// cascade. Reports whether a row was deleted.
func (r *SessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.ChatSession, error) {
	var (
		s                    models.ChatSession
		provider, state      string
		startTime, createdAt string
		updatedAt            string
		endTime              *string
	)
	if err := row.Scan(&s.ID, &provider, &s.ProjectName, &startTime, &endTime,
		&s.MessageCount, &s.TokenCount, &s.FilePath, &s.FileHash, &state,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	s.Provider = models.Provider(provider)
	s.State = models.SessionState(state)

	var err error
	if s.StartTime, err = parseTime(startTime); err != nil {
		return nil, err
	}
	if s.EndTime, err = parseOptionalTime(endTime); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
