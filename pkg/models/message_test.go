package models

import (
	"testing"
	"time"
)

func msgWithUses(seq int, ids ...string) *Message {
	m := NewMessage("s", RoleAssistant, "use", time.Now().UTC(), seq)
	for _, id := range ids {
		m.ToolUses = append(m.ToolUses, ToolUse{ID: id, Name: "Bash"})
	}
	return m
}

func msgWithResults(seq int, ids ...string) *Message {
	m := NewMessage("s", RoleUser, "result", time.Now().UTC(), seq)
	for _, id := range ids {
		m.ToolResults = append(m.ToolResults, ToolResult{ToolUseID: id, Content: "out"})
	}
	return m
}

func TestPairToolMessagesAdjacentPair(t *testing.T) {
	use := msgWithUses(1, "tu-1")
	result := msgWithResults(2, "tu-1")
	tail := NewMessage("s", RoleAssistant, "done", time.Now().UTC(), 3)

	groups := PairToolMessages([]*Message{use, result, tail})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Single() {
		t.Error("first group should be a pair")
	}
	if groups[0].ToolResultMessage.SequenceNumber != 2 {
		t.Errorf("paired result seq = %d", groups[0].ToolResultMessage.SequenceNumber)
	}
	if !groups[1].Single() {
		t.Error("trailing message should be single")
	}
}

func TestPairToolMessagesNoMatch(t *testing.T) {
	use := msgWithUses(1, "tu-1")
	unrelated := msgWithResults(2, "tu-other")

	groups := PairToolMessages([]*Message{use, unrelated})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 singles", len(groups))
	}
	for _, g := range groups {
		if !g.Single() {
			t.Error("mismatched ids must not pair")
		}
	}
}

func TestPairToolMessagesSelfPaired(t *testing.T) {
	m := msgWithUses(1, "tu-1")
	m.ToolResults = []ToolResult{{ToolUseID: "tu-1", Content: "out"}}
	if !m.IsSelfPaired() {
		t.Fatal("message with uses and results should be self-paired")
	}

	next := msgWithResults(2, "tu-1")
	groups := PairToolMessages([]*Message{m, next})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 (self-paired stays single)", len(groups))
	}
}

func TestFlowchartValidate(t *testing.T) {
	ok := NewFlowchart("s",
		[]FlowNode{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C"}},
		[]FlowEdge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "a", To: "c"}})
	if err := ok.Validate(); err != nil {
		t.Errorf("acyclic DAG rejected: %v", err)
	}

	cycle := NewFlowchart("s",
		[]FlowNode{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
		[]FlowEdge{{From: "a", To: "b"}, {From: "b", To: "a"}})
	if err := cycle.Validate(); err == nil {
		t.Error("cycle accepted")
	}

	dangling := NewFlowchart("s",
		[]FlowNode{{ID: "a", Label: "A"}},
		[]FlowEdge{{From: "a", To: "ghost"}})
	if err := dangling.Validate(); err == nil {
		t.Error("dangling edge accepted")
	}

	dup := NewFlowchart("s",
		[]FlowNode{{ID: "a", Label: "A"}, {ID: "a", Label: "A2"}}, nil)
	if err := dup.Validate(); err == nil {
		t.Error("duplicate node id accepted")
	}
}
