// Package toolops classifies raw tool_use blocks from assistant messages
// into structured operations and builds the persisted ToolOperation
// records that feed both analysis pipelines.
package toolops

import (
	"strings"
	"time"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// Kind is the structural classification of a tool call.
type Kind string

const (
	KindBash    Kind = "bash"
	KindRead    Kind = "read"
	KindWrite   Kind = "write"
	KindEdit    Kind = "edit"
	KindUnknown Kind = "unknown"
)

// BashOp is a shell invocation.
type BashOp struct {
	Command     string
	Description string
}

// ReadOp is a file read, possibly partial.
type ReadOp struct {
	FilePath string
	Offset   *int
	Limit    *int
}

// IsPartialRead reports whether an offset or limit restricted the read.
func (r ReadOp) IsPartialRead() bool { return r.Offset != nil || r.Limit != nil }

// WriteOp is a whole-file write.
type WriteOp struct {
	FilePath    string
	Content     string
	ContentSize *int
	LinesAfter  *int
}

// EditOp is an in-place string replacement.
type EditOp struct {
	FilePath      string
	OldString     string
	NewString     string
	LinesBefore   *int
	LinesAfter    *int
	IsRefactoring bool
}

// Parsed is the classification result for one tool_use block.
type Parsed struct {
	Kind  Kind
	Bash  *BashOp
	Read  *ReadOp
	Write *WriteOp
	Edit  *EditOp
}

// bulkEditLineThreshold marks multi-line replacements as refactoring.
const bulkEditLineThreshold = 5

// Parse classifies a tool_use by name and input shape.
func Parse(use models.ToolUse) Parsed {
	switch use.Name {
	case "Bash":
		return Parsed{Kind: KindBash, Bash: &BashOp{
			Command:     stringField(use.Input, "command"),
			Description: stringField(use.Input, "description"),
		}}
	case "Read":
		return Parsed{Kind: KindRead, Read: &ReadOp{
			FilePath: stringField(use.Input, "file_path"),
			Offset:   intField(use.Input, "offset"),
			Limit:    intField(use.Input, "limit"),
		}}
	case "Write":
		content := stringField(use.Input, "content")
		op := &WriteOp{FilePath: stringField(use.Input, "file_path"), Content: content}
		if content != "" {
			size := len(content)
			lines := strings.Count(content, "\n") + 1
			op.ContentSize = &size
			op.LinesAfter = &lines
		}
		return Parsed{Kind: KindWrite, Write: op}
	case "Edit":
		oldStr := stringField(use.Input, "old_string")
		newStr := stringField(use.Input, "new_string")
		op := &EditOp{FilePath: stringField(use.Input, "file_path"), OldString: oldStr, NewString: newStr}
		if oldStr != "" {
			lines := strings.Count(oldStr, "\n") + 1
			op.LinesBefore = &lines
		}
		if newStr != "" {
			lines := strings.Count(newStr, "\n") + 1
			op.LinesAfter = &lines
		}
		op.IsRefactoring = isBulkReplacement(oldStr, newStr)
		return Parsed{Kind: KindEdit, Edit: op}
	default:
		return Parsed{Kind: KindUnknown}
	}
}

// isBulkReplacement reports whether both sides of an edit span enough
// lines to count as a refactoring rather than a spot fix.
func isBulkReplacement(oldStr, newStr string) bool {
	return strings.Count(oldStr, "\n")+1 >= bulkEditLineThreshold &&
		strings.Count(newStr, "\n")+1 >= bulkEditLineThreshold
}

// ExtractBashOutput splits a paired tool-result into (stdout, stderr).
// Results carrying an error flag land on stderr; everything else is stdout.
func ExtractBashOutput(result *models.ToolResult) (stdout, stderr *string) {
	if result == nil || result.Content == "" {
		return nil, nil
	}
	content := result.Content
	if result.IsError {
		return nil, &content
	}
	return &content, nil
}

// BuildOperation converts one classified tool_use plus its optional paired
// result into a persisted ToolOperation record.
func BuildOperation(msg *models.Message, use models.ToolUse, result *models.ToolResult, ts time.Time) *models.ToolOperation {
	op := models.NewToolOperation(msg.ID, use.ID, msg.SessionID, use.Name, ts)
	op.RawInput = use.Input

	parsed := Parse(use)
	switch parsed.Kind {
	case KindRead:
		if parsed.Read.FilePath != "" {
			classifyFile(op, parsed.Read.FilePath)
		}
	case KindWrite:
		if parsed.Write.FilePath != "" {
			classifyFile(op, parsed.Write.FilePath)
		}
		op.ContentSize = parsed.Write.ContentSize
		op.WithLineMetrics(nil, parsed.Write.LinesAfter)
	case KindEdit:
		if parsed.Edit.FilePath != "" {
			classifyFile(op, parsed.Edit.FilePath)
		}
		op.WithLineMetrics(parsed.Edit.LinesBefore, parsed.Edit.LinesAfter)
		isRefactoring := parsed.Edit.IsRefactoring
		op.IsRefactoring = &isRefactoring
		op.IsBulkEdit = &isRefactoring
	}

	if result != nil {
		ok := !result.IsError
		op.Success = &ok
		if summary := summarizeResult(result.Content); summary != "" {
			op.ResultSummary = &summary
		}
	}

	return op
}

// BuildOperations extracts all operations from a message, pairing each
// tool_use with a result from the same message or the provided follow-up.
func BuildOperations(msg *models.Message, paired *models.Message) []*models.ToolOperation {
	if !msg.HasToolUses() {
		return nil
	}

	results := make(map[string]*models.ToolResult)
	for i := range msg.ToolResults {
		results[msg.ToolResults[i].ToolUseID] = &msg.ToolResults[i]
	}
	if paired != nil {
		for i := range paired.ToolResults {
			r := &paired.ToolResults[i]
			if _, seen := results[r.ToolUseID]; !seen {
				results[r.ToolUseID] = r
			}
		}
	}

	ops := make([]*models.ToolOperation, 0, len(msg.ToolUses))
	for _, use := range msg.ToolUses {
		ops = append(ops, BuildOperation(msg, use, results[use.ID], msg.Timestamp))
	}
	return ops
}

func classifyFile(op *models.ToolOperation, path string) {
	op.WithFilePath(path)
	ext := extension(path)
	if ext != "" {
		op.FileExtension = &ext
	}
	op.WithFileType(IsCodeExtension(ext), IsConfigExtension(ext))
}

const resultSummaryMax = 200

func summarizeResult(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= resultSummaryMax {
		return content
	}
	return string(runes[:resultSummaryMax])
}

func stringField(input map[string]any, key string) string {
	if input == nil {
		return ""
	}
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func intField(input map[string]any, key string) *int {
	if input == nil {
		return nil
	}
	switch v := input[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	default:
		return nil
	}
}
