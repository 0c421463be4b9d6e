package main

// handlers.go implements the command bodies: wiring the app handle,
// invoking services, and rendering results.

import (
	"context"
	"fmt"

	"github.com/haasonsaas/retrochat/internal/analysis"
	"github.com/haasonsaas/retrochat/pkg/models"
)

func runAnalyze(sessionID, createdBy, customPrompt string, noExecute bool) error {
	a, ctx, err := newApp(true)
	if err != nil {
		return err
	}
	interrupted := false
	defer func() { a.close(interrupted) }()

	request, err := a.manager.CreateAnalysisRequest(ctx, sessionID, optional(createdBy), optional(customPrompt))
	if err != nil {
		return err
	}
	fmt.Printf("Created analysis request %s\n", request.ID)

	if noExecute {
		return nil
	}

	if _, err := a.manager.ExecuteAnalysis(ctx, request.ID); err != nil {
		if ctx.Err() != nil {
			interrupted = true
		}
		return err
	}

	analytics, err := a.manager.GetAnalysisResult(ctx, request.ID)
	if err != nil {
		return err
	}
	printAnalytics(analytics)
	return nil
}

func runStatus(requestID string) error {
	a, ctx, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close(false)

	request, err := a.manager.GetAnalysisStatus(ctx, requestID)
	if err != nil {
		return err
	}

	fmt.Printf("Request:  %s\n", request.ID)
	fmt.Printf("Session:  %s\n", request.SessionID)
	fmt.Printf("Status:   %s\n", request.Status)
	fmt.Printf("Started:  %s\n", request.StartedAt.Format("2006-01-02 15:04:05"))
	if request.CompletedAt != nil {
		fmt.Printf("Finished: %s\n", request.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if request.ErrorMessage != nil {
		fmt.Printf("Error:    %s\n", *request.ErrorMessage)
	}
	return nil
}

func runResult(requestID string) error {
	// Regeneration of a missing cached result needs the LLM.
	a, ctx, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close(false)

	analytics, err := a.manager.GetAnalysisResult(ctx, requestID)
	if err != nil {
		return err
	}
	if analytics == nil {
		fmt.Println("No result available; the request has not completed.")
		return nil
	}
	printAnalytics(analytics)
	return nil
}

func runCancel(requestID string) error {
	a, ctx, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close(false)

	if err := a.manager.CancelAnalysis(ctx, requestID); err != nil {
		return err
	}
	fmt.Printf("Cancelled request %s\n", requestID)
	return nil
}

func runCancelAll() error {
	a, ctx, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close(false)

	count, err := a.manager.CancelAllActiveAnalyses(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Cancelled %d active request(s)\n", count)
	return nil
}

func runList(sessionID string, limit int) error {
	a, ctx, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close(false)

	requests, err := a.manager.ListAnalyses(ctx, optional(sessionID), limit)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		fmt.Println("No analysis requests found.")
		return nil
	}

	for _, req := range requests {
		line := fmt.Sprintf("%s  %-9s  session=%s  started=%s",
			req.ID, req.Status, req.SessionID, req.StartedAt.Format("2006-01-02 15:04"))
		fmt.Println(line)
	}
	return nil
}

func runSessions() error {
	a, ctx, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close(false)

	summaries, err := a.query.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No sessions imported.")
		return nil
	}

	for _, s := range summaries {
		status := "-"
		if s.AnalyticsStatus != nil {
			status = string(*s.AnalyticsStatus)
		}
		fmt.Printf("%s  %-12s  msgs=%-4d  analysis=%-9s  %s\n",
			s.SessionID, s.Provider, s.MessageCount, status, s.FirstMessagePreview)
	}
	return nil
}

func runCleanup(daysOld int) error {
	a, ctx, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close(false)

	deleted, err := a.manager.CleanupOldAnalyses(ctx, daysOld)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d old request(s)\n", deleted)
	return nil
}

func runTurns(sessionID string, regenerate bool) error {
	a, ctx, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close(false)

	summarizer := analysis.NewTurnSummarizer(a.db, a.service.Client(), a.logger, a.metrics)

	if !regenerate {
		done, err := summarizer.IsSessionSummarized(ctx, sessionID)
		if err != nil {
			return err
		}
		if done {
			return printTurns(ctx, summarizer, sessionID)
		}
	}

	count, err := summarizer.SummarizeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("Summarized %d turn(s)\n", count)
	return printTurns(ctx, summarizer, sessionID)
}

func printTurns(ctx context.Context, summarizer *analysis.TurnSummarizer, sessionID string) error {
	turns, err := summarizer.GetSessionTurns(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, turn := range turns {
		fmt.Printf("\nTurn %d [%s] (seq %d-%d)\n", turn.TurnNumber, turn.TurnType,
			turn.StartSequence, turn.EndSequence)
		fmt.Printf("  Intent:  %s\n", turn.UserIntent)
		fmt.Printf("  Action:  %s\n", turn.AssistantAction)
		fmt.Printf("  Summary: %s\n", turn.Summary)
	}
	return nil
}

func runFlowchart(sessionID string) error {
	a, ctx, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close(false)

	service := analysis.NewFlowchartService(a.db)
	chart, err := service.GenerateForSession(ctx, sessionID)
	if err != nil {
		return err
	}

	fmt.Printf("Flowchart %s: %d node(s), %d edge(s)\n", chart.ID, len(chart.Nodes), len(chart.Edges))
	for _, node := range chart.Nodes {
		fmt.Printf("  [%s] %s\n", node.ID, node.Label)
	}
	return nil
}

func printAnalytics(a *models.Analytics) {
	if a == nil {
		fmt.Println("No analytics available.")
		return
	}

	fmt.Printf("\nAnalysis for session %s (generated %s)\n",
		a.SessionID, a.GeneratedAt.Format("2006-01-02 15:04:05"))

	m := a.Metrics
	fmt.Printf("\nMetrics:\n")
	fmt.Printf("  Files modified: %d, read: %d\n", m.TotalFilesModified, m.TotalFilesRead)
	fmt.Printf("  Lines +%d/-%d (net %+d), refactorings: %d\n",
		m.LinesAdded, m.LinesRemoved, m.NetCodeGrowth, m.RefactoringOperations)
	fmt.Printf("  Tokens: %d total (in %d, out %d)\n", m.TotalTokensUsed, m.InputTokens, m.OutputTokens)
	fmt.Printf("  Session time: %.1f minutes\n", m.TotalSessionTimeMinutes)
	fmt.Printf("  Tool calls: %d (%d ok, %d failed)\n",
		m.ToolUsage.Total, m.ToolUsage.Successful, m.ToolUsage.Failed)

	if len(a.AIQuantitative.Scores) > 0 {
		fmt.Printf("\nScores:\n")
		for _, s := range a.AIQuantitative.Scores {
			fmt.Printf("  %-15s %.0f/%.0f\n", s.RubricName, s.Score, s.MaxScore)
		}
		if a.AIQuantitative.Summary != nil {
			fmt.Printf("  overall %.1f%%\n", a.AIQuantitative.Summary.Percentage)
		}
	}

	for _, entry := range a.QualitativeOutput.Entries {
		fmt.Printf("\n%s\n", entry.Title)
		if entry.Summary != nil {
			fmt.Printf("  %s\n", *entry.Summary)
		}
		for _, item := range entry.Items {
			fmt.Printf("  - %s\n", item)
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
