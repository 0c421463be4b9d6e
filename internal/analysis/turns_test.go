package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/retrochat/internal/observability"
	"github.com/haasonsaas/retrochat/internal/store"
	"github.com/haasonsaas/retrochat/pkg/models"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "text"})
}

func seqMessages(t *testing.T, sessionID string, roles []models.MessageRole) []*models.Message {
	t.Helper()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	messages := make([]*models.Message, 0, len(roles))
	for i, role := range roles {
		messages = append(messages, models.NewMessage(
			sessionID, role, "message content", base.Add(time.Duration(i)*time.Minute), i+1))
	}
	return messages
}

func TestDetectTurnsBasic(t *testing.T) {
	messages := seqMessages(t, "s", []models.MessageRole{
		models.RoleUser, models.RoleAssistant, models.RoleAssistant,
		models.RoleUser, models.RoleAssistant,
	})

	turns := DetectTurns(messages)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}

	if turns[0].TurnNumber != 1 || turns[0].StartSequence != 1 || turns[0].EndSequence != 3 {
		t.Errorf("turn1 = %+v, want seq 1-3", turns[0])
	}
	if turns[1].TurnNumber != 2 || turns[1].StartSequence != 4 || turns[1].EndSequence != 5 {
		t.Errorf("turn2 = %+v, want seq 4-5", turns[1])
	}
	if !turns[0].EndedAt.After(turns[0].StartedAt) {
		t.Error("turn1 should span time")
	}
}

func TestDetectTurnsNoUserMessages(t *testing.T) {
	messages := seqMessages(t, "s", []models.MessageRole{
		models.RoleSystem, models.RoleAssistant,
	})
	if turns := DetectTurns(messages); len(turns) != 0 {
		t.Errorf("got %d turns, want 0", len(turns))
	}
}

func TestDetectTurnsSingleMessage(t *testing.T) {
	messages := seqMessages(t, "s", []models.MessageRole{models.RoleUser})
	turns := DetectTurns(messages)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].StartSequence != turns[0].EndSequence {
		t.Error("single-message turn should span one sequence")
	}
}

func TestDetectTurnsEmpty(t *testing.T) {
	if turns := DetectTurns(nil); len(turns) != 0 {
		t.Errorf("got %d turns from empty input", len(turns))
	}
}

const canonicalTurnResponse = `USER_INTENT: User wanted to add logging.

ASSISTANT_ACTION: Created a logging module.

SUMMARY: Implemented structured logging.

TURN_TYPE: task

KEY_TOPICS: logging, observability`

func TestSummarizeSession(t *testing.T) {
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	session := models.NewChatSession(models.ProviderClaudeCode, "/t/c.jsonl", "h1", time.Now().UTC())
	if err := store.NewSessionRepo(db).Create(ctx, session); err != nil {
		t.Fatal(err)
	}
	messages := seqMessages(t, session.ID, []models.MessageRole{
		models.RoleUser, models.RoleAssistant, models.RoleAssistant,
		models.RoleUser, models.RoleAssistant,
	})
	if err := store.NewMessageRepo(db).BulkCreate(ctx, messages); err != nil {
		t.Fatal(err)
	}

	client := &stubLLM{fallback: canonicalTurnResponse}
	summarizer := NewTurnSummarizer(db, client, testLogger(), nil)

	count, err := summarizer.SummarizeSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("SummarizeSession() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("summarized %d turns, want 2", count)
	}

	turns, err := summarizer.GetSessionTurns(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("stored %d turns, want 2", len(turns))
	}
	if turns[0].TurnType != models.TurnTask {
		t.Errorf("TurnType = %v, want task", turns[0].TurnType)
	}
	if turns[0].UserIntent != "User wanted to add logging." {
		t.Errorf("UserIntent = %q", turns[0].UserIntent)
	}
	if len(turns[0].KeyTopics) != 2 {
		t.Errorf("KeyTopics = %v", turns[0].KeyTopics)
	}
	if turns[0].ModelUsed == nil || *turns[0].ModelUsed != "stub-model" {
		t.Errorf("ModelUsed = %v", turns[0].ModelUsed)
	}

	// Re-summarizing replaces, never appends.
	if _, err := summarizer.SummarizeSession(ctx, session.ID); err != nil {
		t.Fatal(err)
	}
	turns, err = summarizer.GetSessionTurns(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Errorf("after regeneration: %d turns, want 2", len(turns))
	}
}

func TestSummarizeSessionNoTurns(t *testing.T) {
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	session := models.NewChatSession(models.ProviderClaudeCode, "/t/e.jsonl", "h2", time.Now().UTC())
	if err := store.NewSessionRepo(db).Create(ctx, session); err != nil {
		t.Fatal(err)
	}

	summarizer := NewTurnSummarizer(db, &stubLLM{}, testLogger(), nil)
	count, err := summarizer.SummarizeSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestParseTurnResponseDefaults(t *testing.T) {
	parsed := parseTurnResponse("malformed response without fields")
	if parsed.userIntent != "Unknown intent" {
		t.Errorf("userIntent = %q", parsed.userIntent)
	}
	if parsed.assistantAction != "Unknown action" {
		t.Errorf("assistantAction = %q", parsed.assistantAction)
	}
	if parsed.turnType != models.TurnDiscussion {
		t.Errorf("turnType = %v, want discussion", parsed.turnType)
	}
	if len(parsed.keyTopics) != 0 {
		t.Errorf("keyTopics = %v", parsed.keyTopics)
	}
}
