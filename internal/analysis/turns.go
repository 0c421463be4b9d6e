package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/retrochat/internal/llm"
	"github.com/haasonsaas/retrochat/internal/observability"
	"github.com/haasonsaas/retrochat/internal/store"
	"github.com/haasonsaas/retrochat/pkg/models"
)

const (
	turnSummaryMaxTokens   = 1024
	turnSummaryTemperature = float32(0.3)
)

// DetectTurns sweeps messages in sequence order. A turn starts at a user
// message and ends at the last contiguous non-user message before the next
// user message. Sessions without user messages yield no turns.
func DetectTurns(messages []*models.Message) []models.DetectedTurn {
	var turns []models.DetectedTurn
	var current *models.DetectedTurn

	for _, msg := range messages {
		if msg.Role == models.RoleUser {
			if current != nil {
				turns = append(turns, *current)
			}
			current = &models.DetectedTurn{
				TurnNumber:    len(turns) + 1,
				StartSequence: msg.SequenceNumber,
				EndSequence:   msg.SequenceNumber,
				StartedAt:     msg.Timestamp,
				EndedAt:       msg.Timestamp,
			}
			continue
		}
		if current != nil {
			current.EndSequence = msg.SequenceNumber
			current.EndedAt = msg.Timestamp
		}
	}
	if current != nil {
		turns = append(turns, *current)
	}
	return turns
}

// TurnSummarizer generates LLM-backed summaries for detected turns.
type TurnSummarizer struct {
	messages  *store.MessageRepo
	summaries *store.TurnSummaryRepo
	client    llm.Client
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewTurnSummarizer builds the summarizer.
func NewTurnSummarizer(db *store.DB, client llm.Client, logger *observability.Logger, metrics *observability.Metrics) *TurnSummarizer {
	return &TurnSummarizer{
		messages:  store.NewMessageRepo(db),
		summaries: store.NewTurnSummaryRepo(db),
		client:    client,
		logger:    logger,
		metrics:   metrics,
	}
}

// SummarizeSession detects and summarizes all turns for a session,
// replacing any prior summaries. Per-turn failures are logged and skipped;
// the batch continues. Returns the number of turns summarized.
func (t *TurnSummarizer) SummarizeSession(ctx context.Context, sessionID string) (int, error) {
	ctx = observability.AddSessionID(ctx, sessionID)

	messages, err := t.messages.GetBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	turns := DetectTurns(messages)
	if len(turns) == 0 {
		return 0, nil
	}

	if t.client == nil {
		return 0, llm.NewError(llm.KindConfiguration, "", "LLM client is required for turn summarization")
	}

	// Replace, never merge: stale summaries from a prior run must not
	// survive next to fresh ones.
	if _, err := t.summaries.DeleteBySession(ctx, sessionID); err != nil {
		return 0, fmt.Errorf("failed to delete existing turn summaries: %w", err)
	}

	count := 0
	for _, turn := range turns {
		turnMessages := messagesInRange(messages, turn.StartSequence, turn.EndSequence)
		if len(turnMessages) == 0 {
			continue
		}

		summary, err := t.summarizeTurn(ctx, sessionID, turn, turnMessages)
		if err != nil {
			t.logger.Warn(ctx, "Failed to summarize turn", "turn", turn.TurnNumber, "error", err)
			if t.metrics != nil {
				t.metrics.TurnsSummarized.WithLabelValues("error").Inc()
			}
			continue
		}

		if err := t.summaries.Create(ctx, summary); err != nil {
			return count, fmt.Errorf("failed to save turn summary: %w", err)
		}
		if t.metrics != nil {
			t.metrics.TurnsSummarized.WithLabelValues("ok").Inc()
		}
		count++
	}

	return count, nil
}

// IsSessionSummarized reports whether any summaries exist for the session.
func (t *TurnSummarizer) IsSessionSummarized(ctx context.Context, sessionID string) (bool, error) {
	n, err := t.summaries.CountBySession(ctx, sessionID)
	return n > 0, err
}

// GetSessionTurns returns the stored summaries for a session.
func (t *TurnSummarizer) GetSessionTurns(ctx context.Context, sessionID string) ([]*models.TurnSummary, error) {
	return t.summaries.GetBySession(ctx, sessionID)
}

func (t *TurnSummarizer) summarizeTurn(ctx context.Context, sessionID string, turn models.DetectedTurn, messages []*models.Message) (*models.TurnSummary, error) {
	req := llm.NewGenerateRequest(buildTurnPrompt(messages)).
		WithMaxTokens(turnSummaryMaxTokens).
		WithTemperature(turnSummaryTemperature)

	resp, err := t.client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	parsed := parseTurnResponse(resp.Text)
	model := t.client.ModelName()

	return &models.TurnSummary{
		SessionID:       sessionID,
		TurnNumber:      turn.TurnNumber,
		StartSequence:   turn.StartSequence,
		EndSequence:     turn.EndSequence,
		UserIntent:      parsed.userIntent,
		AssistantAction: parsed.assistantAction,
		Summary:         parsed.summary,
		TurnType:        parsed.turnType,
		KeyTopics:       parsed.keyTopics,
		StartedAt:       turn.StartedAt,
		EndedAt:         turn.EndedAt,
		ModelUsed:       &model,
	}, nil
}

func messagesInRange(messages []*models.Message, start, end int) []*models.Message {
	var out []*models.Message
	for _, m := range messages {
		if m.SequenceNumber >= start && m.SequenceNumber <= end {
			out = append(out, m)
		}
	}
	return out
}

// buildTurnPrompt renders one turn's transcript with the required output
// format template.
func buildTurnPrompt(messages []*models.Message) string {
	var transcript strings.Builder
	for _, msg := range messages {
		transcript.WriteString(fmt.Sprintf("[%s%s]: %s\n\n",
			roleTag(msg.Role), typeTag(msg.MessageType),
			TruncateContent(msg.Content, transcriptMessageMax)))
	}

	return fmt.Sprintf(`Analyze the following turn from a coding assistant conversation and provide a structured summary.

## Turn Transcript

%s

## Task

Summarize this turn by extracting:
1. What the user wanted to accomplish
2. What the assistant did in response
3. A brief combined summary
4. The type of turn (task, question, error_fix, clarification, or discussion)
5. Key topics discussed

## Required Output Format

Your response MUST follow this exact format:

USER_INTENT: [One sentence describing what the user wanted]

ASSISTANT_ACTION: [One sentence describing what the assistant did]

SUMMARY: [One sentence combining the above into a cohesive summary]

TURN_TYPE: [One of: task, question, error_fix, clarification, discussion]

KEY_TOPICS: [Comma-separated list of 2-5 key topics/technologies mentioned]`,
		strings.TrimSpace(transcript.String()))
}

type parsedTurnResponse struct {
	userIntent      string
	assistantAction string
	summary         string
	turnType        models.TurnType
	keyTopics       []string
}

// parseTurnResponse extracts the FIELD: lines; missing fields default so
// malformed LLM output never aborts summarization.
func parseTurnResponse(text string) parsedTurnResponse {
	userIntent := extractField(text, "USER_INTENT")
	if userIntent == "" {
		userIntent = "Unknown intent"
	}
	assistantAction := extractField(text, "ASSISTANT_ACTION")
	if assistantAction == "" {
		assistantAction = "Unknown action"
	}
	summary := extractField(text, "SUMMARY")
	if summary == "" {
		summary = fmt.Sprintf("%s -> %s", userIntent, assistantAction)
	}

	return parsedTurnResponse{
		userIntent:      userIntent,
		assistantAction: assistantAction,
		summary:         summary,
		turnType:        models.ParseTurnType(extractField(text, "TURN_TYPE")),
		keyTopics:       splitList(extractField(text, "KEY_TOPICS"), ","),
	}
}

// extractField finds the first "NAME: value" line, case-insensitively.
func extractField(text, name string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if hasField(line, name) {
			return fieldValue(line)
		}
	}
	return ""
}
