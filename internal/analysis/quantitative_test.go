package analysis

import (
	"testing"
	"time"

	"github.com/haasonsaas/retrochat/pkg/models"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func testSession() *models.ChatSession {
	return models.NewChatSession(models.ProviderClaudeCode, "/tmp/s.jsonl", "hash", time.Now().UTC())
}

func TestCollectQuantitativeDataEmptySession(t *testing.T) {
	m := CollectQuantitativeData(testSession(), nil, nil)

	if m.TotalFilesModified != 0 || m.TotalFilesRead != 0 {
		t.Error("expected zero file counts")
	}
	if m.LinesAdded != 0 || m.LinesRemoved != 0 || m.NetCodeGrowth != 0 {
		t.Error("expected zero line counts")
	}
	if m.TokenEfficiency != 0 {
		t.Errorf("TokenEfficiency = %v, want 0 (no divide-by-zero)", m.TokenEfficiency)
	}
	if m.TotalSessionTimeMinutes != 0 {
		t.Errorf("TotalSessionTimeMinutes = %v, want 0", m.TotalSessionTimeMinutes)
	}
	if m.ToolUsage.Total != 0 {
		t.Error("expected zero tool usage")
	}
}

func TestCollectQuantitativeDataSingleMessage(t *testing.T) {
	now := time.Now().UTC()
	messages := []*models.Message{
		models.NewMessage("s", models.RoleUser, "hello", now, 1),
	}
	m := CollectQuantitativeData(testSession(), messages, nil)
	if m.TotalSessionTimeMinutes != 0 {
		t.Errorf("single-message session time = %v, want 0", m.TotalSessionTimeMinutes)
	}
}

func TestCollectQuantitativeDataAggregates(t *testing.T) {
	base := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	msg1 := models.NewMessage("s", models.RoleUser, "do the thing", base, 1)
	msg1.TokenCount = intPtr(100)
	msg2 := models.NewMessage("s", models.RoleAssistant, "done", base.Add(30*time.Minute), 2)
	msg2.TokenCount = intPtr(50)

	ops := []*models.ToolOperation{
		{
			ToolName:   "Write",
			FilePath:   strPtr("/src/a.go"),
			LinesAdded: intPtr(10),
			Success:    boolPtr(true),
		},
		{
			ToolName:     "Edit",
			FilePath:     strPtr("/src/a.go"),
			LinesAdded:   intPtr(5),
			LinesRemoved: intPtr(3),
			Success:      boolPtr(true),
			IsRefactoring: boolPtr(true),
		},
		{
			ToolName: "Read",
			FilePath: strPtr("/src/b.go"),
			Success:  boolPtr(false),
		},
	}

	m := CollectQuantitativeData(testSession(), []*models.Message{msg1, msg2}, ops)

	if m.TotalFilesModified != 1 {
		t.Errorf("TotalFilesModified = %d, want 1 (deduped)", m.TotalFilesModified)
	}
	if m.TotalFilesRead != 1 {
		t.Errorf("TotalFilesRead = %d, want 1", m.TotalFilesRead)
	}
	if m.LinesAdded != 15 || m.LinesRemoved != 3 || m.NetCodeGrowth != 12 {
		t.Errorf("lines = +%d/-%d net %d", m.LinesAdded, m.LinesRemoved, m.NetCodeGrowth)
	}
	if m.RefactoringOperations != 1 {
		t.Errorf("RefactoringOperations = %d, want 1", m.RefactoringOperations)
	}
	if m.TotalTokensUsed != 150 || m.InputTokens != 100 || m.OutputTokens != 50 {
		t.Errorf("tokens = %d/%d/%d", m.TotalTokensUsed, m.InputTokens, m.OutputTokens)
	}
	if m.TokenEfficiency != 0.5 {
		t.Errorf("TokenEfficiency = %v, want 0.5", m.TokenEfficiency)
	}
	if m.TotalSessionTimeMinutes != 30 {
		t.Errorf("TotalSessionTimeMinutes = %v, want 30", m.TotalSessionTimeMinutes)
	}
	if m.ToolUsage.Total != 3 || m.ToolUsage.Successful != 2 || m.ToolUsage.Failed != 1 {
		t.Errorf("tool usage = %+v", m.ToolUsage)
	}
	if m.ToolUsage.ToolDistribution["Write"] != 1 || m.ToolUsage.ToolDistribution["Edit"] != 1 {
		t.Errorf("distribution = %v", m.ToolUsage.ToolDistribution)
	}
	if len(m.PeakHours) == 0 || m.PeakHours[0] != 14 {
		t.Errorf("PeakHours = %v, want leading 14", m.PeakHours)
	}
}

func strPtr(s string) *string { return &s }
