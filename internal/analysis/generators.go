package analysis

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/haasonsaas/retrochat/internal/llm"
	"github.com/haasonsaas/retrochat/pkg/models"
)

const (
	generatorMaxTokens   = 4000
	generatorTemperature = float32(0.7)
	generatorMaxRetries  = 3
)

// GenerateQualitativeAnalysisAI drives one LLM call producing the
// narrative half of an analysis. Malformed output degrades to defaults
// rather than failing.
func GenerateQualitativeAnalysisAI(ctx context.Context, client llm.Client, in QualitativeInput) (models.AIQualitativeOutput, error) {
	req := llm.NewGenerateRequest(BuildQualitativePrompt(in)).
		WithMaxTokens(generatorMaxTokens).
		WithTemperature(generatorTemperature)

	resp, err := llm.GenerateWithRetry(ctx, client, req, generatorMaxRetries)
	if err != nil {
		return models.AIQualitativeOutput{}, err
	}

	return ParseQualitativeResponse(resp.Text), nil
}

// GenerateQuantitativeAnalysisAI drives one LLM call producing rubric
// scores. Malformed output degrades to an empty score set.
func GenerateQuantitativeAnalysisAI(ctx context.Context, client llm.Client, in QualitativeInput) (models.AIQuantitativeOutput, error) {
	req := llm.NewGenerateRequest(BuildQuantitativePrompt(in)).
		WithMaxTokens(generatorMaxTokens).
		WithTemperature(generatorTemperature)

	resp, err := llm.GenerateWithRetry(ctx, client, req, generatorMaxRetries)
	if err != nil {
		return models.AIQuantitativeOutput{}, err
	}

	return ParseQuantitativeResponse(resp.Text), nil
}

// ParseQualitativeResponse extracts ENTRY_* blocks line by line. Missing
// fields default to unit strings; the parser never fails.
func ParseQualitativeResponse(text string) models.AIQualitativeOutput {
	var out models.AIQualitativeOutput
	var current *models.QualitativeEntry

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasField(line, "ENTRY_TITLE"):
			if current != nil {
				out.Entries = append(out.Entries, *current)
			}
			current = &models.QualitativeEntry{Title: fieldValue(line)}
		case hasField(line, "ENTRY_SUMMARY"):
			if current != nil {
				summary := fieldValue(line)
				current.Summary = &summary
			}
		case hasField(line, "ENTRY_ITEMS"):
			if current != nil {
				current.Items = splitList(fieldValue(line), ";")
			}
		}
	}
	if current != nil {
		out.Entries = append(out.Entries, *current)
	}

	for i := range out.Entries {
		if out.Entries[i].Title == "" {
			out.Entries[i].Title = "Unknown category"
		}
		if out.Entries[i].Items == nil {
			out.Entries[i].Items = []string{}
		}
	}

	total := 0
	for _, e := range out.Entries {
		total += len(e.Items)
	}
	if len(out.Entries) > 0 {
		out.Summary = &models.QualitativeSummary{
			CategoriesEvaluated: len(out.Entries),
			TotalEntries:        total,
		}
	}
	return out
}

var scoreLineRe = regexp.MustCompile(`(?i)^SCORE:\s*([a-z0-9_ ]+?)\s*=\s*([0-9]+(?:\.[0-9]+)?)\s*/\s*([0-9]+(?:\.[0-9]+)?)`)

// ParseQuantitativeResponse extracts SCORE: lines. Lines that do not match
// are skipped; the parser never fails.
func ParseQuantitativeResponse(text string) models.AIQuantitativeOutput {
	var out models.AIQuantitativeOutput

	for _, line := range strings.Split(text, "\n") {
		m := scoreLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		score, err1 := strconv.ParseFloat(m[2], 64)
		max, err2 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil || max == 0 {
			continue
		}
		out.Scores = append(out.Scores, models.RubricScore{
			RubricName: strings.ToLower(strings.TrimSpace(m[1])),
			Score:      score,
			MaxScore:   max,
		})
	}

	if len(out.Scores) > 0 {
		var total, max float64
		for _, s := range out.Scores {
			total += s.Score
			max += s.MaxScore
		}
		out.Summary = &models.ScoreSummary{
			TotalScore: total,
			MaxScore:   max,
			Percentage: total / max * 100,
		}
	}
	return out
}

// hasField reports whether line starts with "NAME:" case-insensitively.
func hasField(line, name string) bool {
	return len(line) > len(name) &&
		strings.EqualFold(line[:len(name)], name) &&
		strings.HasPrefix(strings.TrimSpace(line[len(name):]), ":")
}

// fieldValue returns the text after the first colon, trimmed.
func fieldValue(line string) string {
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		return strings.TrimSpace(line[idx+1:])
	}
	return ""
}

// splitList splits on sep, trimming and dropping empty elements.
func splitList(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
