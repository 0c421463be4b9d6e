package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies the coding-assistant tool that produced a transcript.
type Provider string

const (
	ProviderClaudeCode Provider = "claude_code"
	ProviderGemini     Provider = "gemini"
	ProviderCursor     Provider = "cursor"
	ProviderChatGPT    Provider = "chatgpt"
	ProviderUnknown    Provider = "unknown"
)

// SessionState tracks a session through the import pipeline.
// States advance linearly via SetState.
type SessionState string

const (
	SessionCreated  SessionState = "created"
	SessionImported SessionState = "imported"
	SessionAnalyzed SessionState = "analyzed"
)

// ChatSession is the stable identity for a single chat transcript.
// (file_hash, file_path) is the dedup key for re-imports.
type ChatSession struct {
	ID           string       `json:"id"`
	Provider     Provider     `json:"provider"`
	ProjectName  *string      `json:"project_name,omitempty"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      *time.Time   `json:"end_time,omitempty"`
	MessageCount int          `json:"message_count"`
	TokenCount   *int         `json:"token_count,omitempty"`
	FilePath     string       `json:"file_path"`
	FileHash     string       `json:"file_hash"`
	State        SessionState `json:"state"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewChatSession creates a session in the Created state.
func NewChatSession(provider Provider, filePath, fileHash string, startTime time.Time) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{
		ID:        uuid.New().String(),
		Provider:  provider,
		StartTime: startTime,
		FilePath:  filePath,
		FileHash:  fileHash,
		State:     SessionCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithProject sets the project name and returns the session for chaining.
func (s *ChatSession) WithProject(name string) *ChatSession {
	s.ProjectName = &name
	return s
}

// SetState advances the session state and bumps updated_at.
func (s *ChatSession) SetState(state SessionState) {
	s.State = state
	s.UpdatedAt = time.Now().UTC()
}

// Touch bumps updated_at, marking the session as modified for the
// analysis dirty check.
func (s *ChatSession) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
