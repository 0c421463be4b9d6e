// Package main provides the CLI entry point for retrochat, a retrospective
// analyzer for coding-assistant chat transcripts.
//
// # Basic Usage
//
// Analyze a session:
//
//	retrochat analyze <session-id>
//
// Check a request, view its result, or cancel it:
//
//	retrochat status <request-id>
//	retrochat result <request-id>
//	retrochat cancel <request-id>
//
// Summarize prompt/response turns:
//
//	retrochat turns <session-id>
//
// # Environment Variables
//
//   - RETROCHAT_CONFIG: Path to configuration file
//   - GOOGLE_AI_API_KEY: Google AI key for Gemini models
//   - OPENAI_API_KEY: OpenAI key for GPT models
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/retrochat/internal/analysis"
	"github.com/haasonsaas/retrochat/internal/config"
	"github.com/haasonsaas/retrochat/internal/lifecycle"
	"github.com/haasonsaas/retrochat/internal/llm"
	"github.com/haasonsaas/retrochat/internal/observability"
	"github.com/haasonsaas/retrochat/internal/store"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

var configPath string

func main() {
	// A local .env keeps API keys out of shell profiles during development.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:     "retrochat",
		Short:   "Retrospective analysis for coding assistant sessions",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		buildAnalyzeCmd(),
		buildStatusCmd(),
		buildResultCmd(),
		buildCancelCmd(),
		buildListCmd(),
		buildSessionsCmd(),
		buildCleanupCmd(),
		buildTurnsCmd(),
		buildFlowchartCmd(),
	)

	if err := root.Execute(); err != nil {
		printUserError(err)
		os.Exit(1)
	}
}

// app bundles the dependency handle every command operates through. No
// process-wide singletons; each command builds and closes its own.
type app struct {
	cfg       *config.Config
	db        *store.DB
	logger    *observability.Logger
	metrics   *observability.Metrics
	manager   *lifecycle.Manager
	service   *analysis.Service
	query     *analysis.QueryService
	cleanup   *lifecycle.CleanupHandler
	cancelCtx context.CancelFunc
}

// newApp wires configuration, storage and services. needLLM selects
// whether a missing provider key is fatal; read-only commands pass false.
func newApp(needLLM bool) (*app, context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var client llm.Client
	if needLLM {
		client, err = buildLLMClient(ctx, cfg.LLM)
		if err != nil {
			cancel()
			db.Close()
			return nil, nil, err
		}
		client = llm.Instrument(client, metrics)
	}

	service := analysis.NewService(db, client, logger)
	manager := lifecycle.NewManager(db, service, logger, metrics)

	a := &app{
		cfg:       cfg,
		db:        db,
		logger:    logger,
		metrics:   metrics,
		manager:   manager,
		service:   service,
		query:     analysis.NewQueryService(db),
		cleanup:   lifecycle.NewCleanupHandler(manager, logger),
		cancelCtx: cancel,
	}
	return a, ctx, nil
}

// close runs the shutdown hook and releases resources. The cleanup handler
// gets a fresh context: the signal context is already done when we arrive
// here through an interrupt.
func (a *app) close(interrupted bool) {
	if interrupted {
		a.cleanup.Shutdown(context.Background())
	}
	a.cancelCtx()
	a.db.Close()
}

// buildLLMClient constructs the configured provider.
func buildLLMClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "google_ai", "":
		gc := llm.GoogleConfigFromEnv()
		gc.Model = cfg.Model
		gc.TimeoutSecs = cfg.TimeoutSecs
		gc.MaxRetries = cfg.MaxRetries
		return llm.NewGoogleClient(ctx, gc)
	case "openai":
		oc := llm.OpenAIConfigFromEnv()
		oc.Model = cfg.Model
		oc.BaseURL = cfg.BaseURL
		oc.TimeoutSecs = cfg.TimeoutSecs
		return llm.NewOpenAIClient(oc)
	case "cli":
		return llm.NewCLIClient(llm.CLIConfig{
			Binary:      cfg.CLIBinary,
			Args:        cfg.CLIArgs,
			Model:       cfg.Model,
			TimeoutSecs: cfg.TimeoutSecs,
		})
	default:
		return nil, llm.NewError(llm.KindConfiguration, cfg.Provider,
			fmt.Sprintf("unknown LLM provider %q", cfg.Provider))
	}
}

// printUserError prefers the short human phrasing for LLM errors.
func printUserError(err error) {
	if llmErr, ok := llm.AsError(err); ok {
		fmt.Fprintln(os.Stderr, "Error:", llmErr.UserMessage())
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
}
