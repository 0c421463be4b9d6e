package models

import (
	"strings"
	"time"
)

// TurnType classifies what a prompt/response turn was about.
type TurnType string

const (
	TurnTask          TurnType = "task"
	TurnQuestion      TurnType = "question"
	TurnErrorFix      TurnType = "error_fix"
	TurnClarification TurnType = "clarification"
	TurnDiscussion    TurnType = "discussion"
)

// ParseTurnType matches a lowercased turn-type literal. Unrecognized
// strings fall back to discussion so LLM output never fails parsing.
func ParseTurnType(s string) TurnType {
	switch TurnType(strings.ToLower(strings.TrimSpace(s))) {
	case TurnTask:
		return TurnTask
	case TurnQuestion:
		return TurnQuestion
	case TurnErrorFix:
		return TurnErrorFix
	case TurnClarification:
		return TurnClarification
	default:
		return TurnDiscussion
	}
}

// DetectedTurn is a contiguous run of messages starting at a user prompt
// and ending just before the next user prompt.
type DetectedTurn struct {
	TurnNumber    int       `json:"turn_number"`
	StartSequence int       `json:"start_sequence"`
	EndSequence   int       `json:"end_sequence"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
}

// TurnSummary is the LLM-generated summary for one detected turn.
// Summaries for a session are fully replaced on re-summarization.
type TurnSummary struct {
	SessionID       string    `json:"session_id"`
	TurnNumber      int       `json:"turn_number"`
	StartSequence   int       `json:"start_sequence"`
	EndSequence     int       `json:"end_sequence"`
	UserIntent      string    `json:"user_intent"`
	AssistantAction string    `json:"assistant_action"`
	Summary         string    `json:"summary"`
	TurnType        TurnType  `json:"turn_type"`
	KeyTopics       []string  `json:"key_topics"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	ModelUsed       *string   `json:"model_used,omitempty"`
}
