package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/retrochat/internal/llm"
	"github.com/haasonsaas/retrochat/internal/observability"
	"github.com/haasonsaas/retrochat/internal/store"
	"github.com/haasonsaas/retrochat/pkg/models"
)

// Service turns a session id into an Analytics record. It is a pure
// function of the stored session data and the LLM; persistence belongs to
// the lifecycle manager.
type Service struct {
	sessions *store.SessionRepo
	messages *store.MessageRepo
	toolOps  *store.ToolOperationRepo
	client   llm.Client
	logger   *observability.Logger
}

// NewService builds the analytics service. client may be nil; analysis
// then fails with a configuration error at call time.
func NewService(db *store.DB, client llm.Client, logger *observability.Logger) *Service {
	return &Service{
		sessions: store.NewSessionRepo(db),
		messages: store.NewMessageRepo(db),
		toolOps:  store.NewToolOperationRepo(db),
		client:   client,
		logger:   logger,
	}
}

// Client exposes the configured LLM client, or nil.
func (s *Service) Client() llm.Client { return s.client }

// AnalyzeSession runs the full analysis for one session. requestID may be
// empty for transient callers; the resulting record then carries the
// temp-request marker and must not be persisted.
func (s *Service) AnalyzeSession(ctx context.Context, sessionID string, requestID string) (*models.Analytics, error) {
	ctx = observability.AddSessionID(ctx, sessionID)
	s.logger.Info(ctx, "Starting session analysis")

	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, llm.NewError(llm.KindInvalidRequest, "", fmt.Sprintf("invalid session ID format: %v", err))
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	messages, err := s.messages.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	toolOperations, err := s.toolOps.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	metrics := CollectQuantitativeData(session, messages, toolOperations)
	qualitativeInput := CollectQualitativeData(session, messages, toolOperations)

	if s.client == nil {
		return nil, llm.NewError(llm.KindConfiguration, "", "LLM client is required for analysis")
	}

	// Run both generators in parallel; the errgroup context cancels the
	// sibling as soon as either call fails, and the first error wins.
	var (
		qualitative  models.AIQualitativeOutput
		quantitative models.AIQuantitativeOutput
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := GenerateQualitativeAnalysisAI(gctx, s.client, qualitativeInput)
		if err != nil {
			return err
		}
		qualitative = out
		return nil
	})
	g.Go(func() error {
		out, err := GenerateQuantitativeAnalysisAI(gctx, s.client, qualitativeInput)
		if err != nil {
			return err
		}
		quantitative = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if requestID == "" {
		requestID = models.TempRequestID
	}

	s.logger.Info(ctx, "Session analysis complete",
		"entries", len(qualitative.Entries), "scores", len(quantitative.Scores))

	return models.NewAnalytics(requestID, sessionID, qualitative, quantitative, metrics), nil
}
