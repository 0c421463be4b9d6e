package main

// commands.go contains the cobra command definitions and their flag
// configurations. The handlers live in handlers.go.

import (
	"github.com/spf13/cobra"
)

func buildAnalyzeCmd() *cobra.Command {
	var (
		createdBy    string
		customPrompt string
		noExecute    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <session-id>",
		Short: "Create and run an analysis for a session",
		Long: `Create an analysis request for a session and execute it.

A session that has not changed since its last completed analysis is
rejected; pass --prompt to force a re-analysis with custom instructions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(args[0], createdBy, customPrompt, noExecute)
		},
	}
	cmd.Flags().StringVar(&createdBy, "created-by", "", "requester recorded on the request")
	cmd.Flags().StringVar(&customPrompt, "prompt", "", "custom analysis instructions (bypasses the dirty check)")
	cmd.Flags().BoolVar(&noExecute, "no-execute", false, "create the request without executing it")
	return cmd
}

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <request-id>",
		Short: "Show the status of an analysis request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(args[0])
		},
	}
}

func buildResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <request-id>",
		Short: "Show the analytics result of a completed request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResult(args[0])
		},
	}
}

func buildCancelCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "cancel [request-id]",
		Short: "Cancel a pending or running analysis request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return runCancelAll()
			}
			if len(args) != 1 {
				return cmd.Usage()
			}
			return runCancel(args[0])
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "cancel every active request")
	return cmd
}

func buildListCmd() *cobra.Command {
	var (
		sessionID string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(sessionID, limit)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "restrict to one session")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum requests to show")
	return cmd
}

func buildSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List imported sessions with analysis status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions()
		},
	}
}

func buildCleanupCmd() *cobra.Command {
	var daysOld int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old terminal analysis requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(daysOld)
		},
	}
	cmd.Flags().IntVar(&daysOld, "days", 30, "delete requests completed more than this many days ago")
	return cmd
}

func buildTurnsCmd() *cobra.Command {
	var regenerate bool
	cmd := &cobra.Command{
		Use:   "turns <session-id>",
		Short: "Detect and summarize prompt/response turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurns(args[0], regenerate)
		},
	}
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "re-summarize even if summaries exist")
	return cmd
}

func buildFlowchartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flowchart <session-id>",
		Short: "Generate a turn flowchart for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlowchart(args[0])
		},
	}
}
