package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// MessageRepo persists transcript messages.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a repository over the shared handle.
func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db.Handle()}
}

// messagePayload is the tool_calls JSON column shape: the tool protocol
// blocks a message carries, stored alongside the denormalized operations.
type messagePayload struct {
	ToolUses    []models.ToolUse    `json:"tool_uses,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// messageMetadata is the metadata JSON column shape.
type messageMetadata struct {
	MessageType models.MessageType `json:"message_type"`
}

// Create inserts a message.
func (r *MessageRepo) Create(ctx context.Context, m *models.Message) error {
	toolCalls, metadata, err := encodeMessage(m)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, timestamp,
			token_count, message_type, tool_calls, metadata, sequence_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, string(m.Role), m.Content, formatTime(m.Timestamp),
		m.TokenCount, string(m.MessageType), toolCalls, metadata, m.SequenceNumber)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// BulkCreate inserts all messages in one transaction; any failure aborts
// the whole batch.
func (r *MessageRepo) BulkCreate(ctx context.Context, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, timestamp,
			token_count, message_type, tool_calls, metadata, sequence_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		toolCalls, metadata, err := encodeMessage(m)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.SessionID, string(m.Role), m.Content, formatTime(m.Timestamp),
			m.TokenCount, string(m.MessageType), toolCalls, metadata, m.SequenceNumber); err != nil {
			return fmt.Errorf("failed to create message in bulk: %w", err)
		}
	}

	return tx.Commit()
}

// GetBySession returns the session's messages in sequence order. Turn
// detection and quantitative aggregation depend on this ordering.
func (r *MessageRepo) GetBySession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, timestamp, token_count,
		       message_type, tool_calls, metadata, sequence_number
		FROM messages
		WHERE session_id = ?
		ORDER BY sequence_number ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetByID fetches a single message, returning nil when not found.
func (r *MessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, role, content, timestamp, token_count,
		       message_type, tool_calls, metadata, sequence_number
		FROM messages WHERE id = ?`, id)

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	return m, nil
}

// CountBySession returns the number of messages in a session.
func (r *MessageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func encodeMessage(m *models.Message) (toolCalls, metadata *string, err error) {
	if m.HasToolUses() || m.HasToolResults() {
		b, err := json.Marshal(messagePayload{ToolUses: m.ToolUses, ToolResults: m.ToolResults})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to serialize tool calls: %w", err)
		}
		s := string(b)
		toolCalls = &s
	}

	b, err := json.Marshal(messageMetadata{MessageType: m.MessageType})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	s := string(b)
	metadata = &s
	return toolCalls, metadata, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m                   models.Message
		role, msgType, ts   string
		toolCalls, metadata *string
	)
	if err := row.Scan(&m.ID, &m.SessionID, &role, &m.Content, &ts,
		&m.TokenCount, &msgType, &toolCalls, &metadata, &m.SequenceNumber); err != nil {
		return nil, err
	}

	m.Role = models.MessageRole(role)
	m.MessageType = models.MessageType(msgType)

	var err error
	if m.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}

	if toolCalls != nil && *toolCalls != "" {
		var payload messagePayload
		if err := json.Unmarshal([]byte(*toolCalls), &payload); err != nil {
			return nil, fmt.Errorf("failed to deserialize tool calls: %w", err)
		}
		m.ToolUses = payload.ToolUses
		m.ToolResults = payload.ToolResults
	}

	if metadata != nil && *metadata != "" {
		var md messageMetadata
		if err := json.Unmarshal([]byte(*metadata), &md); err == nil && md.MessageType != "" {
			m.MessageType = md.MessageType
		}
	}

	return &m, nil
}

// rollback discards a transaction, tolerating the already-committed case.
func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		_ = err
	}
}
