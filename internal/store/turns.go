package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// TurnSummaryRepo persists per-turn summaries. A session's summaries are
// always replaced as a set, so deletes precede inserts during
// re-summarization.
type TurnSummaryRepo struct {
	db *sql.DB
}

// NewTurnSummaryRepo creates a repository over the shared handle.
func NewTurnSummaryRepo(db *DB) *TurnSummaryRepo {
	return &TurnSummaryRepo{db: db.Handle()}
}

// Create inserts one turn summary.
func (r *TurnSummaryRepo) Create(ctx context.Context, s *models.TurnSummary) error {
	topicsJSON, err := json.Marshal(s.KeyTopics)
	if err != nil {
		return fmt.Errorf("failed to serialize key topics: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO turn_summaries (
			session_id, turn_number, start_sequence, end_sequence,
			user_intent, assistant_action, summary, turn_type,
			key_topics_json, started_at, ended_at, model_used
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.TurnNumber, s.StartSequence, s.EndSequence,
		s.UserIntent, s.AssistantAction, s.Summary, string(s.TurnType),
		string(topicsJSON), formatTime(s.StartedAt), formatTime(s.EndedAt), s.ModelUsed)
	if err != nil {
		return fmt.Errorf("failed to create turn summary: %w", err)
	}
	return nil
}

// GetBySession returns a session's summaries in turn order.
func (r *TurnSummaryRepo) GetBySession(ctx context.Context, sessionID string) ([]*models.TurnSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, turn_number, start_sequence, end_sequence,
		       user_intent, assistant_action, summary, turn_type,
		       key_topics_json, started_at, ended_at, model_used
		FROM turn_summaries
		WHERE session_id = ?
		ORDER BY turn_number ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch turn summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.TurnSummary
	for rows.Next() {
		s, err := scanTurnSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// DeleteBySession removes a session's summaries, returning the count.
func (r *TurnSummaryRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM turn_summaries WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete turn summaries: %w", err)
	}
	return res.RowsAffected()
}

// CountBySession returns the number of summaries for a session.
func (r *TurnSummaryRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turn_summaries WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count turn summaries: %w", err)
	}
	return n, nil
}

func scanTurnSummary(row rowScanner) (*models.TurnSummary, error) {
	var (
		s                    models.TurnSummary
		turnType, topicsJSON string
		startedAt, endedAt   string
	)
	if err := row.Scan(&s.SessionID, &s.TurnNumber, &s.StartSequence, &s.EndSequence,
		&s.UserIntent, &s.AssistantAction, &s.Summary, &turnType,
		&topicsJSON, &startedAt, &endedAt, &s.ModelUsed); err != nil {
		return nil, err
	}

	s.TurnType = models.ParseTurnType(turnType)

	if err := json.Unmarshal([]byte(topicsJSON), &s.KeyTopics); err != nil {
		return nil, fmt.Errorf("failed to deserialize key topics: %w", err)
	}

	var err error
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if s.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
