package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// AnalyticsRequestRepo persists analysis request records.
type AnalyticsRequestRepo struct {
	db *sql.DB
}

// NewAnalyticsRequestRepo creates a repository over the shared handle.
func NewAnalyticsRequestRepo(db *DB) *AnalyticsRequestRepo {
	return &AnalyticsRequestRepo{db: db.Handle()}
}

const requestColumns = `id, session_id, status, started_at, completed_at,
	created_by, error_message, custom_prompt`

// Create inserts a request.
func (r *AnalyticsRequestRepo) Create(ctx context.Context, req *models.AnalyticsRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analytics_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.SessionID, string(req.Status), formatTime(req.StartedAt),
		formatOptionalTime(req.CompletedAt), req.CreatedBy, req.ErrorMessage, req.CustomPrompt)
	if err != nil {
		return fmt.Errorf("failed to create analytics request: %w", err)
	}
	return nil
}

// CreateIfNoActive checks the single-flight invariant and inserts inside
// one transaction. The connection is opened with immediate write
// transactions, so racing creators serialize on the check. Returns the id
// of the existing active request when one exists.
func (r *AnalyticsRequestRepo) CreateIfNoActive(ctx context.Context, req *models.AnalyticsRequest) (existingID string, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	row := tx.QueryRowContext(ctx, `
		SELECT id FROM analytics_requests
		WHERE session_id = ? AND status IN (?, ?)
		LIMIT 1`,
		req.SessionID, string(models.StatusPending), string(models.StatusRunning))
	var active string
	switch err := row.Scan(&active); {
	case err == nil:
		return active, nil
	case errors.Is(err, sql.ErrNoRows):
		// No active request; proceed with the insert.
	default:
		return "", fmt.Errorf("failed to check active requests: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analytics_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.SessionID, string(req.Status), formatTime(req.StartedAt),
		formatOptionalTime(req.CompletedAt), req.CreatedBy, req.ErrorMessage, req.CustomPrompt); err != nil {
		return "", fmt.Errorf("failed to create analytics request: %w", err)
	}

	return "", tx.Commit()
}

// FindByID fetches a request, returning nil when not found.
func (r *AnalyticsRequestRepo) FindByID(ctx context.Context, id string) (*models.AnalyticsRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM analytics_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analytics request: %w", err)
	}
	return req, nil
}

// FindBySessionID returns all requests for a session, newest first.
func (r *AnalyticsRequestRepo) FindBySessionID(ctx context.Context, sessionID string) ([]*models.AnalyticsRequest, error) {
	return r.query(ctx, `
		SELECT `+requestColumns+` FROM analytics_requests
		WHERE session_id = ? ORDER BY started_at DESC`, sessionID)
}

// FindActive returns all pending or running requests.
func (r *AnalyticsRequestRepo) FindActive(ctx context.Context) ([]*models.AnalyticsRequest, error) {
	return r.query(ctx, `
		SELECT `+requestColumns+` FROM analytics_requests
		WHERE status IN (?, ?) ORDER BY started_at ASC`,
		string(models.StatusPending), string(models.StatusRunning))
}

// FindRecent returns the most recent requests across all sessions.
func (r *AnalyticsRequestRepo) FindRecent(ctx context.Context, limit int) ([]*models.AnalyticsRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx, `
		SELECT `+requestColumns+` FROM analytics_requests
		ORDER BY started_at DESC LIMIT ?`, limit)
}

// Update rewrites the mutable request columns.
func (r *AnalyticsRequestRepo) Update(ctx context.Context, req *models.AnalyticsRequest) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE analytics_requests
		SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ?`,
		string(req.Status), formatOptionalTime(req.CompletedAt), req.ErrorMessage, req.ID)
	if err != nil {
		return fmt.Errorf("failed to update analytics request: %w", err)
	}
	return nil
}

// DeleteCompletedBefore removes terminal requests whose completed_at falls
// before the cutoff, returning the count. Analytics cascade with them.
func (r *AnalyticsRequestRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM analytics_requests
		WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(models.StatusCompleted), string(models.StatusFailed), string(models.StatusCancelled),
		formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old analytics requests: %w", err)
	}
	return res.RowsAffected()
}

func (r *AnalyticsRequestRepo) query(ctx context.Context, q string, args ...any) ([]*models.AnalyticsRequest, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analytics requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.AnalyticsRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analytics request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*models.AnalyticsRequest, error) {
	var (
		req                    models.AnalyticsRequest
		status, startedAt      string
		completedAt            *string
	)
	if err := row.Scan(&req.ID, &req.SessionID, &status, &startedAt,
		&completedAt, &req.CreatedBy, &req.ErrorMessage, &req.CustomPrompt); err != nil {
		return nil, err
	}

	parsed, err := models.ParseOperationStatus(status)
	if err != nil {
		return nil, err
	}
	req.Status = parsed

	if req.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if req.CompletedAt, err = parseOptionalTime(completedAt); err != nil {
		return nil, err
	}
	return &req, nil
}
