package workflow

import (
	"context"
	"testing"
)

// exported workflow JSON in the authoring surface's shape: edge conditions
// nested under data.
const exportedWorkflow = `{
	"nodes": [
		{"id": "1", "type": "start", "data": {"label": "Start Conversation"}},
		{"id": "2", "type": "condition", "data": {
			"label": "Check greeting",
			"conditionType": "keyword",
			"keywords": ["hello", "hi", "hey"]
		}},
		{"id": "3", "type": "message", "data": {"label": "Hello! How can I help you today?"}},
		{"id": "4", "type": "message", "data": {"label": "I didn't understand that. Can you rephrase?"}}
	],
	"edges": [
		{"id": "e1-2", "source": "1", "target": "2"},
		{"id": "e2-3", "source": "2", "target": "3", "data": {"condition": "true"}},
		{"id": "e2-4", "source": "2", "target": "4", "data": {"condition": "false"}}
	]
}`

func TestParseExportedWorkflow(t *testing.T) {
	g, err := Parse([]byte(exportedWorkflow))
	if err != nil {
		t.Fatalf("failed to parse workflow: %v", err)
	}

	if g.Len() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.Len())
	}
	if g.StartID() != "1" {
		t.Errorf("expected start node 1, got %q", g.StartID())
	}

	edges := g.EdgesFrom("2")
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges from condition node, got %d", len(edges))
	}
	if edges[0].Condition != "true" || edges[1].Condition != "false" {
		t.Errorf("expected data.condition tags to be lifted, got %+v", edges)
	}

	if errs := g.Validate(); len(errs) != 0 {
		t.Errorf("expected valid graph, got %v", errs)
	}
}

func TestParseTopLevelEdgeCondition(t *testing.T) {
	g, err := Parse([]byte(`{
		"nodes": [{"id": "a", "type": "condition"}, {"id": "b", "type": "message"}],
		"edges": [{"source": "a", "target": "b", "condition": "true"}]
	}`))
	if err != nil {
		t.Fatalf("failed to parse workflow: %v", err)
	}

	edges := g.EdgesFrom("a")
	if len(edges) != 1 || edges[0].Condition != "true" {
		t.Errorf("expected top-level condition tag, got %+v", edges)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("{nope")); err == nil {
		t.Fatal("expected parse error for invalid JSON")
	}
}

func TestParsedWorkflowExecutes(t *testing.T) {
	g, err := Parse([]byte(exportedWorkflow))
	if err != nil {
		t.Fatalf("failed to parse workflow: %v", err)
	}

	engine := NewEngine(g, nil)

	result := engine.Execute(context.Background(), Request{Message: "Hello there!"})
	if result.Response != "Hello! How can I help you today?" {
		t.Errorf("expected greeting branch, got %q", result.Response)
	}

	result = engine.Execute(context.Background(), Request{Message: "What services do you offer?"})
	if result.Response != "I didn't understand that. Can you rephrase?" {
		t.Errorf("expected fallback branch, got %q", result.Response)
	}
}
