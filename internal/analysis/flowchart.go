package analysis

import (
	"context"
	"fmt"

	"github.com/haasonsaas/retrochat/internal/store"
	"github.com/haasonsaas/retrochat/pkg/models"
)

// FlowchartService derives a conversation flowchart from a session's turn
// structure and persists it.
type FlowchartService struct {
	messages   *store.MessageRepo
	flowcharts *store.FlowchartRepo
}

// NewFlowchartService builds the flowchart service.
func NewFlowchartService(db *store.DB) *FlowchartService {
	return &FlowchartService{
		messages:   store.NewMessageRepo(db),
		flowcharts: store.NewFlowchartRepo(db),
	}
}

// GenerateForSession builds a linear turn flowchart and saves it. The
// graph is validated acyclic on write.
func (f *FlowchartService) GenerateForSession(ctx context.Context, sessionID string) (*models.Flowchart, error) {
	messages, err := f.messages.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turns := DetectTurns(messages)
	if len(turns) == 0 {
		return nil, fmt.Errorf("session has no user turns to chart")
	}

	nodes := make([]models.FlowNode, 0, len(turns))
	edges := make([]models.FlowEdge, 0, len(turns)-1)
	for i, turn := range turns {
		label := fmt.Sprintf("Turn %d", turn.TurnNumber)
		if first := firstUserMessage(messages, turn.StartSequence); first != nil {
			label = TruncateContent(first.Content, 60)
		}
		nodes = append(nodes, models.FlowNode{
			ID:    fmt.Sprintf("turn-%d", turn.TurnNumber),
			Label: label,
			Kind:  "turn",
		})
		if i > 0 {
			edges = append(edges, models.FlowEdge{
				From: fmt.Sprintf("turn-%d", turns[i-1].TurnNumber),
				To:   fmt.Sprintf("turn-%d", turn.TurnNumber),
			})
		}
	}

	chart := models.NewFlowchart(sessionID, nodes, edges)
	if err := f.flowcharts.Save(ctx, chart); err != nil {
		return nil, err
	}
	return chart, nil
}

// GetLatest returns the newest stored flowchart for a session, or nil.
func (f *FlowchartService) GetLatest(ctx context.Context, sessionID string) (*models.Flowchart, error) {
	return f.flowcharts.GetLatestBySession(ctx, sessionID)
}

func firstUserMessage(messages []*models.Message, seq int) *models.Message {
	for _, m := range messages {
		if m.SequenceNumber == seq && m.Role == models.RoleUser {
			return m
		}
	}
	return nil
}
