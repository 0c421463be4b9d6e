package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/retrochat/internal/analysis"
	"github.com/haasonsaas/retrochat/internal/llm"
	"github.com/haasonsaas/retrochat/internal/observability"
	"github.com/haasonsaas/retrochat/internal/store"
	"github.com/haasonsaas/retrochat/pkg/models"
)

const rubricResponse = `SCORE: overall=80/100
SCORE: code_quality=75/100`

const narrativeResponse = `ENTRY_TITLE: Insights
ENTRY_SUMMARY: Solid session.
ENTRY_ITEMS: Clear prompts; Focused edits`

// stubLLM answers the rubric prompt with scores and everything else with
// narrative entries. An optional gate blocks Generate until released.
type stubLLM struct {
	mu    sync.Mutex
	gate  chan struct{}
	err   error
	calls int
}

func (s *stubLLM) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	err := s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	text := narrativeResponse
	if strings.Contains(req.Prompt, "SCORE:") {
		text = rubricResponse
	}
	return &llm.GenerateResponse{Text: text, ModelUsed: "stub-model", FinishReason: "stop"}, nil
}

func (s *stubLLM) ProviderName() string              { return "stub" }
func (s *stubLLM) ModelName() string                 { return "stub-model" }
func (s *stubLLM) HealthCheck(context.Context) error { return nil }
func (s *stubLLM) EstimateTokens(text string) int    { return len(text) / 4 }

type fixture struct {
	db      *store.DB
	manager *Manager
	client  *stubLLM
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.LogConfig{Level: "error", Format: "text"})
	client := &stubLLM{}
	service := analysis.NewService(db, client, logger)
	return &fixture{
		db:      db,
		manager: NewManager(db, service, logger, nil),
		client:  client,
	}
}

// seedSession creates a session with 4 messages and one Write operation
// adding 10 lines.
func (f *fixture) seedSession(t *testing.T, hash string) *models.ChatSession {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	session := models.NewChatSession(models.ProviderClaudeCode, "/t/"+hash+".jsonl", hash, base)
	if err := store.NewSessionRepo(f.db).Create(ctx, session); err != nil {
		t.Fatal(err)
	}

	roles := []models.MessageRole{
		models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant,
	}
	var messages []*models.Message
	for i, role := range roles {
		messages = append(messages, models.NewMessage(
			session.ID, role, "content", base.Add(time.Duration(i)*time.Minute), i+1))
	}
	if err := store.NewMessageRepo(f.db).BulkCreate(ctx, messages); err != nil {
		t.Fatal(err)
	}

	linesAdded := 10
	op := models.NewToolOperation(messages[1].ID, "tu-1", session.ID, "Write", base.Add(time.Minute))
	op.WithFilePath("/src/main.go").WithFileType(true, false)
	op.LinesAdded = &linesAdded
	op.WithSuccess(true)
	if err := store.NewToolOperationRepo(f.db).BulkCreate(ctx, []*models.ToolOperation{op}); err != nil {
		t.Fatal(err)
	}

	return session
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.seedSession(t, "happy")

	request, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	if err != nil {
		t.Fatalf("CreateAnalysisRequest() error = %v", err)
	}
	if request.Status != models.StatusPending {
		t.Fatalf("Status = %v, want pending", request.Status)
	}

	sessionID, err := f.manager.ExecuteAnalysis(ctx, request.ID)
	if err != nil {
		t.Fatalf("ExecuteAnalysis() error = %v", err)
	}
	if sessionID != session.ID {
		t.Errorf("sessionID = %q, want %q", sessionID, session.ID)
	}

	status, err := f.manager.GetAnalysisStatus(ctx, request.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != models.StatusCompleted {
		t.Errorf("Status = %v, want completed", status.Status)
	}
	if status.CompletedAt == nil {
		t.Error("CompletedAt should be set for terminal status")
	}

	result, err := f.manager.GetAnalysisResult(ctx, request.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("GetAnalysisResult() = nil, want analytics")
	}
	if result.Metrics.LinesAdded != 10 {
		t.Errorf("LinesAdded = %d, want 10", result.Metrics.LinesAdded)
	}
	if result.Metrics.TotalFilesModified != 1 {
		t.Errorf("TotalFilesModified = %d, want 1", result.Metrics.TotalFilesModified)
	}
	if len(result.AIQuantitative.Scores) == 0 || result.AIQuantitative.Scores[0].Score != 80 {
		t.Errorf("Scores = %+v, want overall=80", result.AIQuantitative.Scores)
	}
	if result.AnalyticsRequestID != request.ID {
		t.Errorf("AnalyticsRequestID = %q, want real request id", result.AnalyticsRequestID)
	}
	if result.AnalysisDurationMs == nil {
		t.Error("AnalysisDurationMs should be set")
	}
}

func TestDirtyCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.seedSession(t, "dirty")

	request, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.ExecuteAnalysis(ctx, request.ID); err != nil {
		t.Fatal(err)
	}

	_, err = f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	var notModified *NotModifiedError
	if !errors.As(err, &notModified) {
		t.Fatalf("error = %v, want NotModifiedError", err)
	}
	if notModified.LastCompletedAt.IsZero() {
		t.Error("NotModifiedError should reference the completion timestamp")
	}
}

func TestCustomPromptBypassesDirtyCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.seedSession(t, "bypass")

	request, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.ExecuteAnalysis(ctx, request.ID); err != nil {
		t.Fatal(err)
	}

	prompt := "Review security"
	second, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, &prompt)
	if err != nil {
		t.Fatalf("error = %v, want bypass with custom prompt", err)
	}
	if second.Status != models.StatusPending {
		t.Errorf("Status = %v, want pending", second.Status)
	}
	if second.CustomPrompt == nil || *second.CustomPrompt != "Review security" {
		t.Errorf("CustomPrompt = %v, want stored verbatim", second.CustomPrompt)
	}
}

func TestSingleFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.seedSession(t, "flight")

	first, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	var active *AlreadyActiveError
	if !errors.As(err, &active) {
		t.Fatalf("error = %v, want AlreadyActiveError", err)
	}
	if active.ExistingID != first.ID {
		t.Errorf("ExistingID = %q, want %q", active.ExistingID, first.ID)
	}
}

func TestCancelWhileRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.seedSession(t, "cancel")

	gate := make(chan struct{})
	f.client.mu.Lock()
	f.client.gate = gate
	f.client.mu.Unlock()

	request, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.ExecuteAnalysis(ctx, request.ID)
		done <- err
	}()

	// Wait for the transition to running, then cancel mid-flight.
	waitForStatus(t, f.manager, request.ID, models.StatusRunning)
	if err := f.manager.CancelAnalysis(ctx, request.ID); err != nil {
		t.Fatalf("CancelAnalysis() error = %v", err)
	}

	// Executing the same id again fails: it is no longer pending.
	if _, err := f.manager.ExecuteAnalysis(ctx, request.ID); err == nil {
		t.Error("expected second execute to fail after cancellation")
	}

	close(gate)
	if err := <-done; err == nil {
		t.Error("expected the in-flight execution to report a discarded result")
	}

	// The completion path must not overwrite Cancelled, and nothing may
	// be persisted for the cancelled request.
	status, err := f.manager.GetAnalysisStatus(ctx, request.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != models.StatusCancelled {
		t.Errorf("Status = %v, want cancelled", status.Status)
	}

	analytics, err := store.NewAnalyticsRepo(f.db).GetByRequestID(ctx, request.ID)
	if err != nil {
		t.Fatal(err)
	}
	if analytics != nil {
		t.Error("no analytics row may be written for a cancelled request")
	}
}

func TestExecuteFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.seedSession(t, "failing")

	f.client.mu.Lock()
	f.client.err = llm.NewError(llm.KindServerError, "stub", "boom")
	f.client.mu.Unlock()

	request, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.ExecuteAnalysis(ctx, request.ID); err == nil {
		t.Fatal("expected analysis failure")
	}

	status, err := f.manager.GetAnalysisStatus(ctx, request.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != models.StatusFailed {
		t.Errorf("Status = %v, want failed", status.Status)
	}
	if status.ErrorMessage == nil || *status.ErrorMessage == "" {
		t.Error("failed request must carry a non-empty error message")
	}
	if status.CompletedAt == nil {
		t.Error("CompletedAt should be set for terminal status")
	}
}

func TestExecuteUnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.ExecuteAnalysis(context.Background(), "11111111-1111-1111-1111-111111111111")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("error = %v, want ErrRequestNotFound", err)
	}
}

func TestCancelAllActiveAnalyses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1 := f.seedSession(t, "all1")
	s2 := f.seedSession(t, "all2")
	if _, err := f.manager.CreateAnalysisRequest(ctx, s1.ID, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.CreateAnalysisRequest(ctx, s2.ID, nil, nil); err != nil {
		t.Fatal(err)
	}

	count, err := f.manager.CancelAllActiveAnalyses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("cancelled %d, want 2", count)
	}

	active, err := f.manager.GetActiveAnalyses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("%d requests still active", len(active))
	}
}

func TestCleanupOldAnalyses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.seedSession(t, "cleanup")

	request, err := f.manager.CreateAnalysisRequest(ctx, session.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.ExecuteAnalysis(ctx, request.ID); err != nil {
		t.Fatal(err)
	}

	// Fresh completion survives a 30-day cleanup.
	deleted, err := f.manager.CleanupOldAnalyses(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}

	// A zero-day cutoff removes anything already terminal.
	time.Sleep(10 * time.Millisecond)
	deleted, err = f.manager.CleanupOldAnalyses(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func waitForStatus(t *testing.T, m *Manager, requestID string, want models.OperationStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := m.GetAnalysisStatus(context.Background(), requestID)
		if err == nil && status.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("request %s never reached status %s", requestID, want)
}
