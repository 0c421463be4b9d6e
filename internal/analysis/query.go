package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/haasonsaas/retrochat/internal/store"
	"github.com/haasonsaas/retrochat/pkg/models"
)

// sessionPreviewMax bounds the first-message preview in listings.
const sessionPreviewMax = 100

// SessionSummary is one row of the session listing, including analysis
// status so consumers can show cached-result availability.
type SessionSummary struct {
	SessionID           string                  `json:"session_id"`
	Provider            string                  `json:"provider"`
	Project             *string                 `json:"project,omitempty"`
	StartTime           string                  `json:"start_time"`
	MessageCount        int                     `json:"message_count"`
	TotalTokens         *int                    `json:"total_tokens,omitempty"`
	FirstMessagePreview string                  `json:"first_message_preview"`
	HasAnalytics        bool                    `json:"has_analytics"`
	AnalyticsStatus     *models.OperationStatus `json:"analytics_status,omitempty"`
}

// SessionAnalytics bundles a session's analysis state.
type SessionAnalytics struct {
	// LatestAnalytics is the newest completed result, if any.
	LatestAnalytics *models.Analytics
	// LatestRequest is the most recent request regardless of status.
	LatestRequest *models.AnalyticsRequest
	// ActiveRequest is the pending/running request, if one exists.
	ActiveRequest *models.AnalyticsRequest
}

// QueryService answers read-only questions about sessions and their
// analyses for the CLI and TUI.
type QueryService struct {
	sessions  *store.SessionRepo
	messages  *store.MessageRepo
	requests  *store.AnalyticsRequestRepo
	analytics *store.AnalyticsRepo
}

// NewQueryService builds the query service.
func NewQueryService(db *store.DB) *QueryService {
	return &QueryService{
		sessions:  store.NewSessionRepo(db),
		messages:  store.NewMessageRepo(db),
		requests:  store.NewAnalyticsRequestRepo(db),
		analytics: store.NewAnalyticsRepo(db),
	}
}

// ListSessions returns summaries for all sessions, newest first.
func (q *QueryService) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := q.sessions.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summary := SessionSummary{
			SessionID:           session.ID,
			Provider:            string(session.Provider),
			Project:             session.ProjectName,
			StartTime:           session.StartTime.Format("2006-01-02 15:04"),
			MessageCount:        session.MessageCount,
			TotalTokens:         session.TokenCount,
			FirstMessagePreview: "No messages available",
		}

		messages, err := q.messages.GetBySession(ctx, session.ID)
		if err == nil && len(messages) > 0 {
			summary.FirstMessagePreview = TruncateContent(messages[0].Content, sessionPreviewMax)
		}

		requests, err := q.requests.FindBySessionID(ctx, session.ID)
		if err == nil && len(requests) > 0 {
			summary.HasAnalytics = true
			status := requests[0].Status
			summary.AnalyticsStatus = &status
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetSessionDetail returns a session with its full message list.
func (q *QueryService) GetSessionDetail(ctx context.Context, sessionID string) (*models.ChatSession, []*models.Message, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, nil, fmt.Errorf("invalid session ID: %w", err)
	}

	session, err := q.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, fmt.Errorf("session not found: %s", sessionID)
	}

	messages, err := q.messages.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, messages, nil
}

// GetSessionAnalytics returns the analysis state for a session, or nil
// when no requests exist.
func (q *QueryService) GetSessionAnalytics(ctx context.Context, sessionID string) (*SessionAnalytics, error) {
	requests, err := q.requests.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}

	result := &SessionAnalytics{LatestRequest: requests[0]}

	for _, req := range requests {
		if req.Status == models.StatusCompleted && result.LatestAnalytics == nil {
			if analytics, err := q.analytics.GetByRequestID(ctx, req.ID); err == nil {
				result.LatestAnalytics = analytics
			}
		}
		if req.Status.IsActive() && result.ActiveRequest == nil {
			result.ActiveRequest = req
		}
	}
	return result, nil
}
