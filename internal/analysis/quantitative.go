package analysis

import (
	"sort"

	"github.com/haasonsaas/retrochat/pkg/models"
)

// peakHourCount caps how many peak hours the metrics report.
const peakHourCount = 3

// CollectQuantitativeData rolls messages and tool operations into the
// deterministic Metrics record. Pure function; never touches storage.
func CollectQuantitativeData(session *models.ChatSession, messages []*models.Message, ops []*models.ToolOperation) models.Metrics {
	m := models.Metrics{
		ToolUsage: models.ToolUsage{ToolDistribution: make(map[string]int)},
	}

	modified := make(map[string]struct{})
	read := make(map[string]struct{})

	for _, op := range ops {
		m.ToolUsage.Total++
		m.ToolUsage.ToolDistribution[op.ToolName]++

		if op.Success != nil {
			if *op.Success {
				m.ToolUsage.Successful++
			} else {
				m.ToolUsage.Failed++
			}
		}

		if op.FilePath != nil {
			switch op.ToolName {
			case "Write", "Edit":
				modified[*op.FilePath] = struct{}{}
			case "Read":
				read[*op.FilePath] = struct{}{}
			}
		}

		if op.LinesAdded != nil {
			m.LinesAdded += *op.LinesAdded
		}
		if op.LinesRemoved != nil {
			m.LinesRemoved += *op.LinesRemoved
		}
		if op.IsRefactoring != nil && *op.IsRefactoring {
			m.RefactoringOperations++
		}
	}

	m.TotalFilesModified = len(modified)
	m.TotalFilesRead = len(read)
	m.NetCodeGrowth = m.LinesAdded - m.LinesRemoved

	hourCounts := make(map[int]int)
	for _, msg := range messages {
		if msg.TokenCount != nil {
			m.TotalTokensUsed += *msg.TokenCount
			switch msg.Role {
			case models.RoleUser:
				m.InputTokens += *msg.TokenCount
			case models.RoleAssistant:
				m.OutputTokens += *msg.TokenCount
			}
		}
		hourCounts[msg.Timestamp.UTC().Hour()]++
	}
	if session != nil && session.TokenCount != nil && m.TotalTokensUsed == 0 {
		m.TotalTokensUsed = *session.TokenCount
	}

	if m.InputTokens > 0 {
		m.TokenEfficiency = float64(m.OutputTokens) / float64(m.InputTokens)
	}

	if len(messages) > 1 {
		first := messages[0].Timestamp
		last := messages[len(messages)-1].Timestamp
		m.TotalSessionTimeMinutes = last.Sub(first).Minutes()
	}

	m.PeakHours = peakHours(hourCounts, peakHourCount)

	return m
}

// peakHours returns the top-n hours by message count, ties broken by hour.
func peakHours(counts map[int]int, n int) []int {
	hours := make([]int, 0, len(counts))
	for h := range counts {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}
