package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlowNode is a single node in a session flowchart.
type FlowNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind,omitempty"`
}

// FlowEdge is a directed edge between two flowchart nodes.
type FlowEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Flowchart is a DAG derived from a session, persisted as a secondary
// artifact alongside analytics.
type Flowchart struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Nodes      []FlowNode `json:"nodes"`
	Edges      []FlowEdge `json:"edges"`
	CreatedAt  time.Time  `json:"created_at"`
	TokenUsage *int       `json:"token_usage,omitempty"`
}

// NewFlowchart creates a flowchart for a session.
func NewFlowchart(sessionID string, nodes []FlowNode, edges []FlowEdge) *Flowchart {
	return &Flowchart{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Nodes:     nodes,
		Edges:     edges,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks that every edge references a known node and that the
// graph is acyclic. Called before every write.
func (f *Flowchart) Validate() error {
	known := make(map[string]struct{}, len(f.Nodes))
	for _, n := range f.Nodes {
		if n.ID == "" {
			return fmt.Errorf("flowchart node with empty id")
		}
		if _, dup := known[n.ID]; dup {
			return fmt.Errorf("duplicate flowchart node %q", n.ID)
		}
		known[n.ID] = struct{}{}
	}

	indegree := make(map[string]int, len(f.Nodes))
	adj := make(map[string][]string, len(f.Nodes))
	for _, e := range f.Edges {
		if _, ok := known[e.From]; !ok {
			return fmt.Errorf("edge references unknown node %q", e.From)
		}
		if _, ok := known[e.To]; !ok {
			return fmt.Errorf("edge references unknown node %q", e.To)
		}
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	// Kahn's algorithm; any node left unvisited sits on a cycle.
	queue := make([]string, 0, len(f.Nodes))
	for id := range known {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(f.Nodes) {
		return fmt.Errorf("flowchart contains a cycle")
	}
	return nil
}
