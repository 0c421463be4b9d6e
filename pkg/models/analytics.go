package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OperationStatus is the analysis request state machine token.
//
// Transitions: pending -> running (execute), pending|running -> cancelled,
// running -> completed | failed. Completed, Failed and Cancelled are
// terminal; completed_at is set exactly when a terminal status is entered.
type OperationStatus string

const (
	StatusPending   OperationStatus = "pending"
	StatusRunning   OperationStatus = "running"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
	StatusCancelled OperationStatus = "cancelled"
)

// IsActive reports whether the status is pending or running.
func (s OperationStatus) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// IsTerminal reports whether the status is completed, failed or cancelled.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseOperationStatus parses a stored status string, case-insensitively.
func ParseOperationStatus(s string) (OperationStatus, error) {
	switch OperationStatus(strings.ToLower(s)) {
	case StatusPending:
		return StatusPending, nil
	case StatusRunning:
		return StatusRunning, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid operation status %q", s)
	}
}

// AnalyticsRequest is the per-session analysis request record. At most one
// request per session may be active at any time.
type AnalyticsRequest struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Status       OperationStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedBy    *string         `json:"created_by,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CustomPrompt *string         `json:"custom_prompt,omitempty"`
}

// NewAnalyticsRequest creates a pending request for a session.
func NewAnalyticsRequest(sessionID string, createdBy, customPrompt *string) *AnalyticsRequest {
	return &AnalyticsRequest{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		Status:       StatusPending,
		StartedAt:    time.Now().UTC(),
		CreatedBy:    createdBy,
		CustomPrompt: customPrompt,
	}
}

// MarkRunning transitions the request to running.
func (r *AnalyticsRequest) MarkRunning() {
	r.Status = StatusRunning
}

// MarkCompleted transitions the request to completed and stamps completed_at.
func (r *AnalyticsRequest) MarkCompleted() {
	r.Status = StatusCompleted
	now := time.Now().UTC()
	r.CompletedAt = &now
}

// MarkFailed transitions the request to failed with a non-empty error message.
func (r *AnalyticsRequest) MarkFailed(errMsg string) {
	r.Status = StatusFailed
	r.ErrorMessage = &errMsg
	now := time.Now().UTC()
	r.CompletedAt = &now
}

// MarkCancelled transitions the request to cancelled.
func (r *AnalyticsRequest) MarkCancelled() {
	r.Status = StatusCancelled
	now := time.Now().UTC()
	r.CompletedAt = &now
}

// ToolUsage aggregates tool-call outcomes for a session.
type ToolUsage struct {
	Total            int            `json:"total"`
	Successful       int            `json:"successful"`
	Failed           int            `json:"failed"`
	ToolDistribution map[string]int `json:"tool_distribution"`
}

// Metrics is the deterministic quantitative roll-up for a session.
// All counts are non-negative; ratio fields are 0 when the denominator is 0.
type Metrics struct {
	TotalFilesModified    int `json:"total_files_modified"`
	TotalFilesRead        int `json:"total_files_read"`
	LinesAdded            int `json:"lines_added"`
	LinesRemoved          int `json:"lines_removed"`
	NetCodeGrowth         int `json:"net_code_growth"`
	RefactoringOperations int `json:"refactoring_operations"`

	TotalTokensUsed int     `json:"total_tokens_used"`
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	TokenEfficiency float64 `json:"token_efficiency"`

	TotalSessionTimeMinutes float64 `json:"total_session_time_minutes"`
	PeakHours               []int   `json:"peak_hours"`

	ToolUsage ToolUsage `json:"tool_usage"`
}

// QualitativeEntry is one titled section of the LLM's narrative analysis.
type QualitativeEntry struct {
	Title   string   `json:"title"`
	Summary *string  `json:"summary,omitempty"`
	Items   []string `json:"items"`
}

// QualitativeSummary aggregates the narrative output.
type QualitativeSummary struct {
	CategoriesEvaluated int `json:"categories_evaluated"`
	TotalEntries        int `json:"total_entries"`
}

// AIQualitativeOutput is the LLM narrative half of an analysis.
type AIQualitativeOutput struct {
	Entries []QualitativeEntry  `json:"entries"`
	Summary *QualitativeSummary `json:"summary,omitempty"`
}

// RubricScore is a named, bounded numeric judgment emitted by the LLM.
type RubricScore struct {
	RubricName string  `json:"rubric_name"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
}

// ScoreSummary aggregates the rubric scores.
type ScoreSummary struct {
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
}

// AIQuantitativeOutput is the LLM rubric-scoring half of an analysis.
type AIQuantitativeOutput struct {
	Scores  []RubricScore `json:"scores"`
	Summary *ScoreSummary `json:"summary,omitempty"`
}

// TempRequestID marks Analytics produced without a lifecycle request.
// Such records are transient and must not be persisted; the lifecycle
// manager always stamps a real request id before saving.
const TempRequestID = "temp-request"

// Analytics is the persisted result of one completed analysis run.
type Analytics struct {
	ID                 string               `json:"id"`
	AnalyticsRequestID string               `json:"analytics_request_id"`
	SessionID          string               `json:"session_id"`
	GeneratedAt        time.Time            `json:"generated_at"`
	Metrics            Metrics              `json:"metrics"`
	QualitativeOutput  AIQualitativeOutput  `json:"qualitative_output"`
	AIQuantitative     AIQuantitativeOutput `json:"ai_quantitative_output"`
	ModelUsed          *string              `json:"model_used,omitempty"`
	AnalysisDurationMs *int64               `json:"analysis_duration_ms,omitempty"`
}

// NewAnalytics assembles an analytics record; requestID may be TempRequestID
// for transient callers that do not persist the result.
func NewAnalytics(requestID, sessionID string, qual AIQualitativeOutput, quant AIQuantitativeOutput, metrics Metrics) *Analytics {
	return &Analytics{
		ID:                 uuid.New().String(),
		AnalyticsRequestID: requestID,
		SessionID:          sessionID,
		GeneratedAt:        time.Now().UTC(),
		Metrics:            metrics,
		QualitativeOutput:  qual,
		AIQuantitative:     quant,
	}
}
