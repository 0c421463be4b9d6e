package models

import (
	"time"

	"github.com/google/uuid"
)

// ToolOperation is a denormalized per-tool-call record extracted from an
// assistant message. session_id is a lookup key, not an ownership edge;
// the owning chain is session -> message -> operation.
type ToolOperation struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	ToolUseID   string    `json:"tool_use_id"`
	SessionID   string    `json:"session_id"`
	ToolName    string    `json:"tool_name"`
	Timestamp   time.Time `json:"timestamp"`

	FilePath      *string `json:"file_path,omitempty"`
	FileExtension *string `json:"file_extension,omitempty"`
	IsCodeFile    *bool   `json:"is_code_file,omitempty"`
	IsConfigFile  *bool   `json:"is_config_file,omitempty"`

	LinesBefore  *int `json:"lines_before,omitempty"`
	LinesAfter   *int `json:"lines_after,omitempty"`
	LinesAdded   *int `json:"lines_added,omitempty"`
	LinesRemoved *int `json:"lines_removed,omitempty"`
	ContentSize  *int `json:"content_size,omitempty"`

	IsBulkEdit    *bool `json:"is_bulk_edit,omitempty"`
	IsRefactoring *bool `json:"is_refactoring,omitempty"`

	Success       *bool   `json:"success,omitempty"`
	ResultSummary *string `json:"result_summary,omitempty"`

	RawInput  map[string]any `json:"raw_input,omitempty"`
	RawResult map[string]any `json:"raw_result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewToolOperation creates an operation record for one tool call.
func NewToolOperation(messageID, toolUseID, sessionID, toolName string, ts time.Time) *ToolOperation {
	return &ToolOperation{
		ID:        uuid.New().String(),
		MessageID: messageID,
		ToolUseID: toolUseID,
		SessionID: sessionID,
		ToolName:  toolName,
		Timestamp: ts,
		CreatedAt: time.Now().UTC(),
	}
}

// WithFilePath records the target file and its extension classification.
func (op *ToolOperation) WithFilePath(path string) *ToolOperation {
	op.FilePath = &path
	return op
}

// WithFileType records the code/config classification flags.
func (op *ToolOperation) WithFileType(isCode, isConfig bool) *ToolOperation {
	op.IsCodeFile = &isCode
	op.IsConfigFile = &isConfig
	return op
}

// WithLineMetrics records before/after line counts and derives added/removed.
func (op *ToolOperation) WithLineMetrics(before, after *int) *ToolOperation {
	op.LinesBefore = before
	op.LinesAfter = after
	if after != nil {
		b := 0
		if before != nil {
			b = *before
		}
		if delta := *after - b; delta >= 0 {
			op.LinesAdded = &delta
		} else {
			removed := -delta
			op.LinesRemoved = &removed
		}
	}
	return op
}

// WithSuccess records the paired tool-result outcome.
func (op *ToolOperation) WithSuccess(ok bool) *ToolOperation {
	op.Success = &ok
	return op
}

// IsFileOperation reports whether the operation targeted a file.
func (op *ToolOperation) IsFileOperation() bool { return op.FilePath != nil }
