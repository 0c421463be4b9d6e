package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole indicates the message author type.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType classifies how a message participates in the tool protocol.
type MessageType string

const (
	MessageSimple       MessageType = "simple_message"
	MessageToolRequest  MessageType = "tool_request"
	MessageToolResult   MessageType = "tool_result"
	MessageThinking     MessageType = "thinking"
	MessageSlashCommand MessageType = "slash_command"
)

// ToolUse is an LLM's request to execute a tool, as recorded in the transcript.
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// ToolResult is the recorded output of a tool execution.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message is a single dialog turn or tool-protocol frame within a session.
// Messages are immutable after ingest; sequence numbers are unique per
// session and monotonic in timestamp order.
type Message struct {
	ID             string       `json:"id"`
	SessionID      string       `json:"session_id"`
	Role           MessageRole  `json:"role"`
	Content        string       `json:"content"`
	Timestamp      time.Time    `json:"timestamp"`
	SequenceNumber int          `json:"sequence_number"`
	TokenCount     *int         `json:"token_count,omitempty"`
	MessageType    MessageType  `json:"message_type"`
	ToolUses       []ToolUse    `json:"tool_uses,omitempty"`
	ToolResults    []ToolResult `json:"tool_results,omitempty"`
}

// NewMessage creates a message with a fresh ID and the simple message type.
func NewMessage(sessionID string, role MessageRole, content string, ts time.Time, seq int) *Message {
	return &Message{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		Role:           role,
		Content:        content,
		Timestamp:      ts,
		SequenceNumber: seq,
		MessageType:    MessageSimple,
	}
}

// HasToolUses reports whether the message carries at least one tool_use block.
func (m *Message) HasToolUses() bool { return len(m.ToolUses) > 0 }

// HasToolResults reports whether the message carries at least one tool_result block.
func (m *Message) HasToolResults() bool { return len(m.ToolResults) > 0 }

// IsSelfPaired reports whether the message contains both its tool uses and
// their results, so no adjacent message pairing is needed.
func (m *Message) IsSelfPaired() bool { return m.HasToolUses() && m.HasToolResults() }

// MessageGroup is a message or a tool-use message paired with the adjacent
// tool-result message. Display and prompt-building code iterates groups so
// a request and its result render as one unit.
type MessageGroup struct {
	ToolUseMessage    *Message
	ToolResultMessage *Message
}

// Single reports whether the group holds one standalone message.
func (g MessageGroup) Single() bool { return g.ToolResultMessage == nil }

// Messages returns the messages in the group in order.
func (g MessageGroup) Messages() []*Message {
	if g.Single() {
		return []*Message{g.ToolUseMessage}
	}
	return []*Message{g.ToolUseMessage, g.ToolResultMessage}
}

// PairToolMessages groups consecutive messages where message N carries
// tool_uses and message N+1 carries a matching tool_result. Self-paired
// messages stay single.
func PairToolMessages(messages []*Message) []MessageGroup {
	groups := make([]MessageGroup, 0, len(messages))

	for i := 0; i < len(messages); {
		cur := messages[i]

		if cur.HasToolUses() && !cur.HasToolResults() && i+1 < len(messages) {
			next := messages[i+1]
			if next.HasToolResults() && !next.HasToolUses() && anyResultMatches(cur.ToolUses, next.ToolResults) {
				groups = append(groups, MessageGroup{ToolUseMessage: cur, ToolResultMessage: next})
				i += 2
				continue
			}
		}

		groups = append(groups, MessageGroup{ToolUseMessage: cur})
		i++
	}

	return groups
}

func anyResultMatches(uses []ToolUse, results []ToolResult) bool {
	ids := make(map[string]struct{}, len(uses))
	for _, u := range uses {
		ids[u.ID] = struct{}{}
	}
	for _, r := range results {
		if _, ok := ids[r.ToolUseID]; ok {
			return true
		}
	}
	return false
}
