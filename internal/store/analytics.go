package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// AnalyticsRepo persists completed analysis payloads. The structured
// outputs are stored as JSON columns; deserialize failures surface as
// parse errors rather than silently dropping fields.
type AnalyticsRepo struct {
	db *sql.DB
}

// NewAnalyticsRepo creates a repository over the shared handle.
func NewAnalyticsRepo(db *DB) *AnalyticsRepo {
	return &AnalyticsRepo{db: db.Handle()}
}

// Save inserts an analytics record.
func (r *AnalyticsRepo) Save(ctx context.Context, a *models.Analytics) error {
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to serialize metrics: %w", err)
	}
	qualJSON, err := json.Marshal(a.QualitativeOutput)
	if err != nil {
		return fmt.Errorf("failed to serialize qualitative output: %w", err)
	}
	quantJSON, err := json.Marshal(a.AIQuantitative)
	if err != nil {
		return fmt.Errorf("failed to serialize quantitative output: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analytics (
			id, analytics_request_id, session_id, generated_at,
			metrics_json, qualitative_output_json, ai_quantitative_output_json,
			model_used, analysis_duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AnalyticsRequestID, a.SessionID, formatTime(a.GeneratedAt),
		string(metricsJSON), string(qualJSON), string(quantJSON),
		a.ModelUsed, a.AnalysisDurationMs)
	if err != nil {
		return fmt.Errorf("failed to insert analytics: %w", err)
	}
	return nil
}

// GetByID fetches one analytics record, returning nil when not found.
func (r *AnalyticsRepo) GetByID(ctx context.Context, id string) (*models.Analytics, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, analytics_request_id, session_id, generated_at,
		       metrics_json, qualitative_output_json, ai_quantitative_output_json,
		       model_used, analysis_duration_ms
		FROM analytics WHERE id = ?`, id)
	return r.scanOptional(row)
}

// GetByRequestID returns the newest analytics for a request, or nil.
func (r *AnalyticsRepo) GetByRequestID(ctx context.Context, requestID string) (*models.Analytics, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, analytics_request_id, session_id, generated_at,
		       metrics_json, qualitative_output_json, ai_quantitative_output_json,
		       model_used, analysis_duration_ms
		FROM analytics
		WHERE analytics_request_id = ?
		ORDER BY generated_at DESC
		LIMIT 1`, requestID)
	return r.scanOptional(row)
}

// DeleteByRequestID removes the analytics rows for a request, reporting
// whether anything was deleted.
func (r *AnalyticsRepo) DeleteByRequestID(ctx context.Context, requestID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM analytics WHERE analytics_request_id = ?`, requestID)
	if err != nil {
		return false, fmt.Errorf("failed to delete analytics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AnalyticsRepo) scanOptional(row rowScanner) (*models.Analytics, error) {
	var (
		a                                models.Analytics
		generatedAt                      string
		metricsJSON, qualJSON, quantJSON string
	)
	err := row.Scan(&a.ID, &a.AnalyticsRequestID, &a.SessionID, &generatedAt,
		&metricsJSON, &qualJSON, &quantJSON, &a.ModelUsed, &a.AnalysisDurationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analytics: %w", err)
	}

	if a.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metricsJSON), &a.Metrics); err != nil {
		return nil, fmt.Errorf("failed to deserialize metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(qualJSON), &a.QualitativeOutput); err != nil {
		return nil, fmt.Errorf("failed to deserialize qualitative output: %w", err)
	}
	if err := json.Unmarshal([]byte(quantJSON), &a.AIQuantitative); err != nil {
		return nil, fmt.Errorf("failed to deserialize quantitative output: %w", err)
	}
	return &a, nil
}
