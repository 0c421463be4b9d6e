package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/haasonsaas/retrochat/internal/llm"
)

// stubLLM returns canned text per prompt marker, or a scripted error.
type stubLLM struct {
	mu        sync.Mutex
	responses map[string]string // substring of prompt -> response text
	fallback  string
	err       error
	calls     int
}

func (s *stubLLM) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	text := s.fallback
	for marker, resp := range s.responses {
		if strings.Contains(req.Prompt, marker) {
			text = resp
			break
		}
	}
	return &llm.GenerateResponse{Text: text, ModelUsed: "stub-model", FinishReason: "stop"}, nil
}

func (s *stubLLM) ProviderName() string              { return "stub" }
func (s *stubLLM) ModelName() string                 { return "stub-model" }
func (s *stubLLM) HealthCheck(context.Context) error { return nil }
func (s *stubLLM) EstimateTokens(text string) int    { return len(text) / 4 }

func TestParseQualitativeResponse(t *testing.T) {
	text := `
ENTRY_TITLE: Good Patterns
ENTRY_SUMMARY: Disciplined incremental changes.
ENTRY_ITEMS: Tests after each edit; Small diffs

ENTRY_TITLE: Improvement Areas
ENTRY_ITEMS: Fewer retries without reading errors
`
	out := ParseQualitativeResponse(text)

	if len(out.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(out.Entries))
	}
	if out.Entries[0].Title != "Good Patterns" {
		t.Errorf("Title = %q", out.Entries[0].Title)
	}
	if out.Entries[0].Summary == nil || !strings.Contains(*out.Entries[0].Summary, "Disciplined") {
		t.Errorf("Summary = %v", out.Entries[0].Summary)
	}
	if len(out.Entries[0].Items) != 2 {
		t.Errorf("Items = %v", out.Entries[0].Items)
	}
	if out.Entries[1].Summary != nil {
		t.Error("second entry should have no summary")
	}
	if out.Summary == nil || out.Summary.CategoriesEvaluated != 2 || out.Summary.TotalEntries != 3 {
		t.Errorf("Summary = %+v", out.Summary)
	}
}

func TestParseQualitativeResponseMalformed(t *testing.T) {
	out := ParseQualitativeResponse("total nonsense with no fields")
	if len(out.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(out.Entries))
	}
	if out.Summary != nil {
		t.Error("expected no summary for empty output")
	}
}

func TestParseQuantitativeResponse(t *testing.T) {
	text := `
SCORE: overall=80/100
SCORE: code_quality=75/100
SCORE: productivity=90/100
garbage line
SCORE: malformed=/100
`
	out := ParseQuantitativeResponse(text)

	if len(out.Scores) != 3 {
		t.Fatalf("got %d scores, want 3", len(out.Scores))
	}
	if out.Scores[0].RubricName != "overall" || out.Scores[0].Score != 80 || out.Scores[0].MaxScore != 100 {
		t.Errorf("score[0] = %+v", out.Scores[0])
	}
	if out.Summary == nil {
		t.Fatal("expected summary")
	}
	if out.Summary.TotalScore != 245 || out.Summary.MaxScore != 300 {
		t.Errorf("Summary = %+v", out.Summary)
	}
}

func TestParseQuantitativeResponseMalformed(t *testing.T) {
	out := ParseQuantitativeResponse("no scores here")
	if len(out.Scores) != 0 || out.Summary != nil {
		t.Errorf("out = %+v, want empty", out)
	}
}

func TestGenerateQualitativeAnalysisAI(t *testing.T) {
	client := &stubLLM{fallback: "ENTRY_TITLE: Insights\nENTRY_ITEMS: One; Two"}
	out, err := GenerateQualitativeAnalysisAI(context.Background(), client, QualitativeInput{SessionID: "s"})
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if len(out.Entries) != 1 || out.Entries[0].Title != "Insights" {
		t.Errorf("out = %+v", out)
	}
}

func TestGenerateQuantitativeAnalysisAIError(t *testing.T) {
	client := &stubLLM{err: llm.NewError(llm.KindAuthenticationFailed, "stub", "denied")}
	_, err := GenerateQuantitativeAnalysisAI(context.Background(), client, QualitativeInput{SessionID: "s"})
	if err == nil {
		t.Fatal("expected error")
	}
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) || llmErr.Kind != llm.KindAuthenticationFailed {
		t.Errorf("error = %v", err)
	}
}

func TestBuildPromptsContainTemplates(t *testing.T) {
	in := QualitativeInput{
		SessionID:  "sess-1",
		Provider:   "claude_code",
		Transcript: "[USER]: hi",
	}

	qual := BuildQualitativePrompt(in)
	if !strings.Contains(qual, "REQUIRED OUTPUT FORMAT") || !strings.Contains(qual, "ENTRY_TITLE:") {
		t.Error("qualitative prompt missing output template")
	}
	if !strings.Contains(qual, "[USER]: hi") {
		t.Error("qualitative prompt missing transcript")
	}

	quant := BuildQuantitativePrompt(in)
	if !strings.Contains(quant, "SCORE:") || !strings.Contains(quant, "code_quality") {
		t.Error("quantitative prompt missing rubric template")
	}

	in.CustomPrompt = "Review security"
	if !strings.Contains(BuildQualitativePrompt(in), "Review security") {
		t.Error("custom prompt not included")
	}
}
