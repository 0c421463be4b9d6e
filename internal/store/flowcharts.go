package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// FlowchartRepo persists session flowcharts. Graphs are validated acyclic
// before every write.
type FlowchartRepo struct {
	db *sql.DB
}

// NewFlowchartRepo creates a repository over the shared handle.
func NewFlowchartRepo(db *DB) *FlowchartRepo {
	return &FlowchartRepo{db: db.Handle()}
}

// Save validates and inserts a flowchart.
func (r *FlowchartRepo) Save(ctx context.Context, f *models.Flowchart) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid flowchart: %w", err)
	}

	nodesJSON, err := json.Marshal(f.Nodes)
	if err != nil {
		return fmt.Errorf("failed to serialize nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(f.Edges)
	if err != nil {
		return fmt.Errorf("failed to serialize edges: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO flowcharts (id, session_id, nodes_json, edges_json, created_at, token_usage)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.SessionID, string(nodesJSON), string(edgesJSON),
		formatTime(f.CreatedAt), f.TokenUsage)
	if err != nil {
		return fmt.Errorf("failed to insert flowchart: %w", err)
	}
	return nil
}

// GetLatestBySession returns the newest flowchart for a session, or nil.
func (r *FlowchartRepo) GetLatestBySession(ctx context.Context, sessionID string) (*models.Flowchart, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, nodes_json, edges_json, created_at, token_usage
		FROM flowcharts
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, sessionID)

	var (
		f                    models.Flowchart
		nodesJSON, edgesJSON string
		createdAt            string
	)
	err := row.Scan(&f.ID, &f.SessionID, &nodesJSON, &edgesJSON, &createdAt, &f.TokenUsage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flowchart: %w", err)
	}

	if err := json.Unmarshal([]byte(nodesJSON), &f.Nodes); err != nil {
		return nil, fmt.Errorf("failed to deserialize nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(edgesJSON), &f.Edges); err != nil {
		return nil, fmt.Errorf("failed to deserialize edges: %w", err)
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteBySession removes a session's flowcharts, returning the count.
func (r *FlowchartRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM flowcharts WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete flowcharts: %w", err)
	}
	return res.RowsAffected()
}
