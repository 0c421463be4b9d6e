package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/retrochat/internal/analysis"
	"github.com/haasonsaas/retrochat/internal/observability"
	"github.com/haasonsaas/retrochat/internal/store"
	"github.com/haasonsaas/retrochat/pkg/models"
)

// Manager owns the analysis request state machine and the persistence of
// completed analyses. At most one request per session is active at any
// time.
type Manager struct {
	service   *analysis.Service
	sessions  *store.SessionRepo
	requests  *store.AnalyticsRequestRepo
	analytics *store.AnalyticsRepo
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewManager builds the lifecycle manager.
func NewManager(db *store.DB, service *analysis.Service, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		service:   service,
		sessions:  store.NewSessionRepo(db),
		requests:  store.NewAnalyticsRequestRepo(db),
		analytics: store.NewAnalyticsRepo(db),
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateAnalysisRequest inserts a pending request after the single-flight
// and dirty checks. A custom prompt bypasses the dirty check: re-analyzing
// an unchanged session with new instructions is always legitimate.
func (m *Manager) CreateAnalysisRequest(ctx context.Context, sessionID string, createdBy, customPrompt *string) (*models.AnalyticsRequest, error) {
	ctx = observability.AddSessionID(ctx, sessionID)

	existing, err := m.requests.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, req := range existing {
		if req.Status.IsActive() {
			return nil, &AlreadyActiveError{SessionID: sessionID, ExistingID: req.ID}
		}
	}

	if customPrompt == nil {
		if err := m.dirtyCheck(ctx, sessionID, existing); err != nil {
			return nil, err
		}
	}

	request := models.NewAnalyticsRequest(sessionID, createdBy, customPrompt)
	existingID, err := m.requests.CreateIfNoActive(ctx, request)
	if err != nil {
		return nil, err
	}
	if existingID != "" {
		// A racing creator won between our check and the insert.
		return nil, &AlreadyActiveError{SessionID: sessionID, ExistingID: existingID}
	}

	if m.metrics != nil {
		m.metrics.ActiveAnalyses.Inc()
	}
	m.logger.Info(ctx, "Created analysis request", "request_id", request.ID)
	return request, nil
}

// dirtyCheck fails with NotModifiedError when the session is unchanged
// since its latest completed analysis. Comparison is at full timestamp
// precision; second-level rounding would produce false "unchanged"
// verdicts on quick re-imports.
func (m *Manager) dirtyCheck(ctx context.Context, sessionID string, requests []*models.AnalyticsRequest) error {
	var latest *models.AnalyticsRequest
	for _, req := range requests {
		if req.Status != models.StatusCompleted || req.CompletedAt == nil {
			continue
		}
		if latest == nil || req.CompletedAt.After(*latest.CompletedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil
	}

	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil || session == nil {
		// Session lookup problems surface later with a clearer error.
		return nil
	}

	if !session.UpdatedAt.After(*latest.CompletedAt) {
		m.logger.Info(ctx, "Session unchanged since last analysis - using cached results",
			"last_analysis", latest.CompletedAt, "session_updated", session.UpdatedAt)
		return &NotModifiedError{SessionID: sessionID, LastCompletedAt: *latest.CompletedAt}
	}
	return nil
}

// ExecuteAnalysis transitions a pending request to running, performs the
// analysis, persists the result and completes the request. Returns the
// session id on success.
func (m *Manager) ExecuteAnalysis(ctx context.Context, requestID string) (string, error) {
	ctx = observability.AddRequestID(ctx, requestID)

	request, err := m.requests.FindByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if request == nil {
		return "", ErrRequestNotFound
	}

	// Re-checking status here is what keeps two racing creators from both
	// running: the loser observes Running and backs off.
	switch request.Status {
	case models.StatusRunning:
		return "", ErrAlreadyRunning
	case models.StatusCompleted:
		return "", ErrAlreadyCompleted
	case models.StatusCancelled, models.StatusFailed:
		return "", &InvalidTransitionError{RequestID: requestID, From: string(request.Status), Action: "execute"}
	}

	request.MarkRunning()
	if err := m.requests.Update(ctx, request); err != nil {
		return "", err
	}

	start := time.Now()
	analytics, analysisErr := m.performAnalysis(ctx, request)
	duration := time.Since(start)

	// The user may have cancelled while the analysis ran. Cancellation is
	// a state transition, not a signal; the result of a cancelled request
	// is discarded, never persisted.
	current, err := m.requests.FindByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if current == nil || current.Status != models.StatusRunning {
		m.logger.Info(ctx, "Discarding analysis result for non-running request",
			"status", statusOf(current))
		return "", fmt.Errorf("request %s is no longer running", requestID)
	}

	if analysisErr != nil {
		request.MarkFailed(analysisErr.Error())
		if err := m.requests.Update(ctx, request); err != nil {
			m.logger.Error(ctx, "Failed to record analysis failure", "error", err)
		}
		m.recordOutcome("failed", duration)
		return "", analysisErr
	}

	durationMs := duration.Milliseconds()
	analytics.AnalyticsRequestID = request.ID
	analytics.AnalysisDurationMs = &durationMs
	if client := m.service.Client(); client != nil {
		model := client.ModelName()
		analytics.ModelUsed = &model
	}
	if err := m.analytics.Save(ctx, analytics); err != nil {
		request.MarkFailed(fmt.Sprintf("failed to save analytics: %v", err))
		if uerr := m.requests.Update(ctx, request); uerr != nil {
			m.logger.Error(ctx, "Failed to record analysis failure", "error", uerr)
		}
		m.recordOutcome("failed", duration)
		return "", err
	}

	request.MarkCompleted()
	if err := m.requests.Update(ctx, request); err != nil {
		return "", err
	}

	m.recordOutcome("completed", duration)
	m.logger.Info(ctx, "Analysis completed", "duration_ms", durationMs)
	return analytics.SessionID, nil
}

func (m *Manager) performAnalysis(ctx context.Context, request *models.AnalyticsRequest) (*models.Analytics, error) {
	return m.service.AnalyzeSession(ctx, request.SessionID, request.ID)
}

// CancelAnalysis transitions a pending or running request to cancelled.
func (m *Manager) CancelAnalysis(ctx context.Context, requestID string) error {
	request, err := m.requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrRequestNotFound
	}
	if !request.Status.IsActive() {
		return &InvalidTransitionError{RequestID: requestID, From: string(request.Status), Action: "cancel"}
	}

	request.MarkCancelled()
	if err := m.requests.Update(ctx, request); err != nil {
		return err
	}
	m.recordOutcome("cancelled", 0)
	m.logger.Info(ctx, "Cancelled analysis request", "request_id", requestID)
	return nil
}

// GetAnalysisStatus returns the request record.
func (m *Manager) GetAnalysisStatus(ctx context.Context, requestID string) (*models.AnalyticsRequest, error) {
	request, err := m.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

// GetAnalysisResult returns the analytics for a completed request, or nil
// for non-terminal or unsuccessful ones. A completed request missing its
// cached record is regenerated on demand and re-persisted, without
// duration tracking.
func (m *Manager) GetAnalysisResult(ctx context.Context, requestID string) (*models.Analytics, error) {
	request, err := m.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}
	if request.Status != models.StatusCompleted {
		return nil, nil
	}

	analytics, err := m.analytics.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}
	if analytics != nil {
		return analytics, nil
	}

	m.logger.Info(ctx, "Analysis not found in database, regenerating", "request_id", requestID)
	regenerated, err := m.service.AnalyzeSession(ctx, request.SessionID, requestID)
	if err != nil {
		m.logger.Warn(ctx, "Failed to regenerate analysis result", "error", err)
		return nil, nil
	}
	regenerated.AnalyticsRequestID = requestID
	if err := m.analytics.Save(ctx, regenerated); err != nil {
		return nil, fmt.Errorf("failed to save regenerated analytics: %w", err)
	}
	return regenerated, nil
}

// ListAnalyses returns a session's requests, or the most recent across all
// sessions when sessionID is nil.
func (m *Manager) ListAnalyses(ctx context.Context, sessionID *string, limit int) ([]*models.AnalyticsRequest, error) {
	if sessionID != nil {
		return m.requests.FindBySessionID(ctx, *sessionID)
	}
	return m.requests.FindRecent(ctx, limit)
}

// GetActiveAnalyses returns all pending or running requests.
func (m *Manager) GetActiveAnalyses(ctx context.Context) ([]*models.AnalyticsRequest, error) {
	return m.requests.FindActive(ctx)
}

// CancelAllActiveAnalyses cancels every active request, returning the
// count cancelled. Individual failures are logged and skipped.
func (m *Manager) CancelAllActiveAnalyses(ctx context.Context) (int, error) {
	active, err := m.GetActiveAnalyses(ctx)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, request := range active {
		if err := m.CancelAnalysis(ctx, request.ID); err != nil {
			m.logger.Warn(ctx, "Failed to cancel request", "request_id", request.ID, "error", err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// CleanupOldAnalyses deletes terminal requests completed more than daysOld
// days ago, returning the number removed.
func (m *Manager) CleanupOldAnalyses(ctx context.Context, daysOld int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	deleted, err := m.requests.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	m.logger.Info(ctx, "Cleaned up old analyses", "deleted", deleted, "days_old", daysOld)
	return deleted, nil
}

func (m *Manager) recordOutcome(outcome string, duration time.Duration) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordAnalysis(outcome, duration.Seconds())
	m.metrics.ActiveAnalyses.Dec()
}

func statusOf(req *models.AnalyticsRequest) string {
	if req == nil {
		return "missing"
	}
	return string(req.Status)
}
