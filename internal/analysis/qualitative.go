package analysis

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// transcriptMessageMax bounds each message's contribution to a prompt.
const transcriptMessageMax = 1000

// QualitativeInput bundles the session data both AI generators consume:
// session metadata, a compact turn-tagged transcript, and an operation
// digest.
type QualitativeInput struct {
	SessionID       string
	Provider        string
	ProjectName     string
	MessageCount    int
	DurationMinutes float64
	Transcript      string
	OperationDigest string
	CustomPrompt    string
}

// CollectQualitativeData shapes session data into the generator input.
// Pure function; never touches storage.
func CollectQualitativeData(session *models.ChatSession, messages []*models.Message, ops []*models.ToolOperation) QualitativeInput {
	input := QualitativeInput{
		SessionID:    session.ID,
		Provider:     string(session.Provider),
		MessageCount: len(messages),
	}
	if session.ProjectName != nil {
		input.ProjectName = *session.ProjectName
	}
	if len(messages) > 1 {
		input.DurationMinutes = messages[len(messages)-1].Timestamp.Sub(messages[0].Timestamp).Minutes()
	}

	input.Transcript = buildTranscript(messages)
	input.OperationDigest = buildOperationDigest(ops)
	return input
}

// buildTranscript renders messages as turn-tagged lines, pairing tool-use
// messages with their results and truncating each body.
func buildTranscript(messages []*models.Message) string {
	var b strings.Builder

	for _, group := range models.PairToolMessages(messages) {
		for _, msg := range group.Messages() {
			b.WriteString(fmt.Sprintf("[%s%s]: %s\n\n",
				roleTag(msg.Role), typeTag(msg.MessageType),
				TruncateContent(msg.Content, transcriptMessageMax)))
		}
	}

	return strings.TrimSpace(b.String())
}

func roleTag(role models.MessageRole) string {
	switch role {
	case models.RoleUser:
		return "USER"
	case models.RoleAssistant:
		return "ASSISTANT"
	default:
		return "SYSTEM"
	}
}

func typeTag(t models.MessageType) string {
	switch t {
	case models.MessageToolRequest:
		return " [Tool Request]"
	case models.MessageToolResult:
		return " [Tool Result]"
	case models.MessageThinking:
		return " [Thinking]"
	case models.MessageSlashCommand:
		return " [Command]"
	default:
		return ""
	}
}

// buildOperationDigest summarizes tool activity in a handful of lines.
func buildOperationDigest(ops []*models.ToolOperation) string {
	if len(ops) == 0 {
		return "No tool operations recorded."
	}

	var b strings.Builder
	byTool := make(map[string]int)
	files := make(map[string]struct{})
	added, removed := 0, 0

	for _, op := range ops {
		byTool[op.ToolName]++
		if op.FilePath != nil {
			files[*op.FilePath] = struct{}{}
		}
		if op.LinesAdded != nil {
			added += *op.LinesAdded
		}
		if op.LinesRemoved != nil {
			removed += *op.LinesRemoved
		}
	}

	b.WriteString(fmt.Sprintf("Total operations: %d across %d files. Lines added: %d, removed: %d.\n",
		len(ops), len(files), added, removed))
	for tool, count := range byTool {
		b.WriteString(fmt.Sprintf("- %s: %d\n", tool, count))
	}
	return strings.TrimSpace(b.String())
}

// contextSection renders the shared prompt preamble both generators use.
func (in QualitativeInput) contextSection() string {
	project := in.ProjectName
	if project == "" {
		project = "Unknown"
	}
	return fmt.Sprintf(`## Session
- ID: %s
- Provider: %s
- Project: %s
- Messages: %d
- Duration: %.1f minutes

## Tool Activity

%s

## Transcript

%s`, in.SessionID, in.Provider, project, in.MessageCount, in.DurationMinutes,
		in.OperationDigest, in.Transcript)
}

// BuildQualitativePrompt assembles the narrative-analysis prompt with the
// required KEY: value output template.
func BuildQualitativePrompt(in QualitativeInput) string {
	var custom string
	if in.CustomPrompt != "" {
		custom = fmt.Sprintf("\n## Custom Instructions\n\n%s\n", in.CustomPrompt)
	}

	return fmt.Sprintf(`You are reviewing a coding assistant session to surface qualitative insights.

%s
%s
## Task

Evaluate the session across these categories: insights, good_patterns, improvement_areas, recommendations.
For each category provide a titled entry with concrete observations.

## REQUIRED OUTPUT FORMAT

Your response MUST follow this exact format, one block per category:

ENTRY_TITLE: [category title]
ENTRY_SUMMARY: [one sentence summary]
ENTRY_ITEMS: [semicolon-separated list of concrete observations]

Example:

ENTRY_TITLE: Good Patterns
ENTRY_SUMMARY: The session showed disciplined incremental changes.
ENTRY_ITEMS: Tests run after each edit; Small focused diffs; Errors read before retrying`,
		in.contextSection(), custom)
}

// BuildQuantitativePrompt assembles the rubric-scoring prompt with the
// required KEY: value output template.
func BuildQuantitativePrompt(in QualitativeInput) string {
	var custom string
	if in.CustomPrompt != "" {
		custom = fmt.Sprintf("\n## Custom Instructions\n\n%s\n", in.CustomPrompt)
	}

	return fmt.Sprintf(`You are scoring a coding assistant session against a fixed rubric.

%s
%s
## Task

Score the session 0-100 on each rubric: overall, code_quality, productivity, efficiency, collaboration, learning.

## REQUIRED OUTPUT FORMAT

Your response MUST follow this exact format, one line per rubric:

SCORE: [rubric_name]=[score]/100

Example:

SCORE: overall=80/100
SCORE: code_quality=75/100`,
		in.contextSection(), custom)
}
