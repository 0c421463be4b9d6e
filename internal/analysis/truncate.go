// Package analysis contains the session analysis pipelines: deterministic
// quantitative aggregation, LLM-driven qualitative and rubric generation,
// turn detection and summarization, and the orchestrating service.
package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateContent limits content to maxChars codepoints, preserving word
// boundaries and appending "..." when anything was cut. Safe for emoji,
// CJK and mixed UTF-8 content.
func TruncateContent(content string, maxChars int) string {
	if utf8.RuneCountInString(content) <= maxChars {
		return content
	}

	// Find the byte offset of the maxChars-th codepoint.
	end := len(content)
	count := 0
	for i := range content {
		if count == maxChars {
			end = i
			break
		}
		count++
	}
	truncated := content[:end]

	// Retreat to the last whitespace when one exists in the prefix.
	if idx := strings.LastIndexFunc(truncated, unicode.IsSpace); idx >= 0 {
		truncated = truncated[:idx]
	}

	return truncated + "..."
}
