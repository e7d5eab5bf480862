package workflow

import (
	"context"
	"errors"
	"testing"
)

type fakeGenerator struct {
	response string
	err      error
	requests []GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// greetingGraph is the canonical branch workflow: start -> keyword condition
// -> "Hi!" on true, "I didn't understand" on false.
func greetingGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start", Data: map[string]interface{}{"label": "Start"}},
			{ID: "2", Type: "condition", Data: map[string]interface{}{
				"conditionType": "keyword",
				"keywords":      []interface{}{"hello"},
			}},
			{ID: "3", Type: "message", Data: map[string]interface{}{"label": "Hi!"}},
			{ID: "4", Type: "message", Data: map[string]interface{}{"label": "I didn't understand"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3", Condition: "true"},
			{Source: "2", Target: "4", Condition: "false"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	return g
}

func TestExecuteGreetingFlow(t *testing.T) {
	engine := NewEngine(greetingGraph(t), nil)

	result := engine.Execute(context.Background(), Request{Message: "hello world"})
	if result.Response != "Hi!" {
		t.Errorf("expected greeting response, got %q", result.Response)
	}

	result = engine.Execute(context.Background(), Request{Message: "xyz"})
	if result.Response != "I didn't understand" {
		t.Errorf("expected fallback branch, got %q", result.Response)
	}
}

func TestExecuteEmptyGraph(t *testing.T) {
	g, _ := NewGraph(nil, nil)
	engine := NewEngine(g, nil)

	ctx := NewContext()
	result := engine.Execute(context.Background(), Request{Message: "hi", Context: ctx})

	if result.Response != ResponseNoWorkflow {
		t.Errorf("expected no-workflow response, got %q", result.Response)
	}

	// Context untouched except for the inserted message key.
	snap := result.Context.Snapshot()
	if len(snap) != 1 || snap[MessageKey] != "hi" {
		t.Errorf("expected context to hold only the message key, got %v", snap)
	}
}

func TestExecuteSetsMessageKey(t *testing.T) {
	engine := NewEngine(greetingGraph(t), nil)

	result := engine.Execute(context.Background(), Request{Message: "hello"})
	if v, ok := result.Context.Get(MessageKey); !ok || v != "hello" {
		t.Errorf("expected %s=hello in context, got %v", MessageKey, v)
	}
}

func TestExecuteCycleGuard(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "a", Type: "start"},
			{ID: "b", Type: "message", Data: map[string]interface{}{"label": "looping"}},
		},
		[]Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)

	// Must terminate, visiting each node at most once.
	result := engine.Execute(context.Background(), Request{Message: "go"})
	if result.Response != "looping" {
		t.Errorf("expected message from single pass, got %q", result.Response)
	}
}

func TestExecuteLastResponseWins(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "message", Data: map[string]interface{}{"label": "first"}},
			{ID: "3", Type: "message", Data: map[string]interface{}{"label": "second"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)
	result := engine.Execute(context.Background(), Request{Message: "m"})
	if result.Response != "second" {
		t.Errorf("expected last message node to win, got %q", result.Response)
	}
}

func TestExecuteDefaultResponse(t *testing.T) {
	g, err := NewGraph(
		[]Node{{ID: "1", Type: "start"}},
		nil,
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)
	result := engine.Execute(context.Background(), Request{Message: "m"})
	if result.Response != ResponseDefault {
		t.Errorf("expected default response, got %q", result.Response)
	}
}

func TestExecuteMessageTemplateUsesContext(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "message", Data: map[string]interface{}{"label": "you said: {user_message}"}},
		},
		[]Edge{{Source: "1", Target: "2"}},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)
	result := engine.Execute(context.Background(), Request{Message: "ping"})
	if result.Response != "you said: ping" {
		t.Errorf("expected rendered message, got %q", result.Response)
	}
}

func TestExecuteConditionWithoutMatchingEdgeHalts(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "condition", Data: map[string]interface{}{
				"conditionType": "keyword",
				"keywords":      []interface{}{"hello"},
			}},
			{ID: "3", Type: "message", Data: map[string]interface{}{"label": "matched"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3", Condition: "true"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)

	// "false" outcome has no edge and no default edge: graceful halt.
	result := engine.Execute(context.Background(), Request{Message: "xyz"})
	if result.Response != ResponseDefault {
		t.Errorf("expected default response after halt, got %q", result.Response)
	}
}

func TestExecuteConditionDefaultEdge(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "condition", Data: map[string]interface{}{
				"conditionType": "intent",
				"intents": []interface{}{
					map[string]interface{}{"name": "greeting", "keywords": []interface{}{"hello"}},
				},
			}},
			{ID: "3", Type: "message", Data: map[string]interface{}{"label": "hi there"}},
			{ID: "4", Type: "message", Data: map[string]interface{}{"label": "catch-all"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3", Condition: "greeting"},
			{Source: "2", Target: "4", Condition: "default"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)

	result := engine.Execute(context.Background(), Request{Message: "hello"})
	if result.Response != "hi there" {
		t.Errorf("expected intent branch, got %q", result.Response)
	}

	result = engine.Execute(context.Background(), Request{Message: "hmm"})
	if result.Response != "catch-all" {
		t.Errorf("expected default edge, got %q", result.Response)
	}
}

func TestExecuteMissingEdgeTargetHalts(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "message", Data: map[string]interface{}{"label": "kept"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "ghost"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)

	// The dangling edge terminates the walk without an error; the response
	// set before it survives.
	result := engine.Execute(context.Background(), Request{Message: "m"})
	if result.Response != "kept" {
		t.Errorf("expected response before dangling edge, got %q", result.Response)
	}
}

func generationGraph(t *testing.T, data map[string]interface{}) *Graph {
	t.Helper()
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "generation", Data: data},
			{ID: "3", Type: "message", Data: map[string]interface{}{"label": "after"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	return g
}

func TestExecuteGenerationNode(t *testing.T) {
	gen := &fakeGenerator{response: "generated text"}
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "generation", Data: map[string]interface{}{
				"systemPrompt": "Answer {user_message} politely",
				"model":        "gpt-4o-mini",
				"temperature":  0.2,
			}},
		},
		[]Edge{{Source: "1", Target: "2"}},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, gen)
	history := []HistoryMessage{{Sender: "user", Content: "earlier"}}
	result := engine.Execute(context.Background(), Request{Message: "hi", History: history})

	if result.Response != "generated text" {
		t.Errorf("expected generated response, got %q", result.Response)
	}
	if len(gen.requests) != 1 {
		t.Fatalf("expected 1 generation call, got %d", len(gen.requests))
	}
	req := gen.requests[0]
	if req.Prompt != "hi" {
		t.Errorf("expected prompt 'hi', got %q", req.Prompt)
	}
	if req.SystemPrompt != "Answer hi politely" {
		t.Errorf("expected rendered system prompt, got %q", req.SystemPrompt)
	}
	if req.Model != "gpt-4o-mini" {
		t.Errorf("expected node model, got %q", req.Model)
	}
	if req.Temperature != 0.2 {
		t.Errorf("expected node temperature, got %v", req.Temperature)
	}
	if len(req.History) != 1 || req.History[0].Content != "earlier" {
		t.Errorf("expected history forwarded, got %+v", req.History)
	}
}

func TestExecuteGenerationDefaults(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	engine := NewEngine(generationGraph(t, map[string]interface{}{}), gen)

	engine.Execute(context.Background(), Request{Message: "hi"})

	if len(gen.requests) != 1 {
		t.Fatalf("expected 1 generation call, got %d", len(gen.requests))
	}
	req := gen.requests[0]
	if req.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("expected default system prompt, got %q", req.SystemPrompt)
	}
	if req.Temperature != DefaultTemperature {
		t.Errorf("expected default temperature, got %v", req.Temperature)
	}
}

func TestExecuteGenerationFailureContinues(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	engine := NewEngine(generationGraph(t, map[string]interface{}{}), gen)

	result := engine.Execute(context.Background(), Request{Message: "hi"})

	// The failure produced the fallback, and the walk still reached the
	// following message node, whose response wins.
	if result.Response != "after" {
		t.Errorf("expected traversal to continue past failed generation, got %q", result.Response)
	}
}

func TestExecuteGenerationFailureFallbackResponse(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "generation", Data: map[string]interface{}{}},
		},
		[]Edge{{Source: "1", Target: "2"}},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, gen)
	result := engine.Execute(context.Background(), Request{Message: "hi"})
	if result.Response != ResponseGenerationFailed {
		t.Errorf("expected generation fallback, got %q", result.Response)
	}
}

func TestExecuteGenerationWithoutBackend(t *testing.T) {
	engine := NewEngine(generationGraph(t, map[string]interface{}{}), nil)

	result := engine.Execute(context.Background(), Request{Message: "hi"})
	if result.Response != "after" {
		t.Errorf("expected traversal to continue, got %q", result.Response)
	}
}

func TestExecuteUnknownNodeTypePassesThrough(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "webhook", Data: map[string]interface{}{"url": "ignored"}},
			{ID: "3", Type: "message", Data: map[string]interface{}{"label": "done"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)
	result := engine.Execute(context.Background(), Request{Message: "m"})
	if result.Response != "done" {
		t.Errorf("expected unknown node type to pass through, got %q", result.Response)
	}
}

func TestExecuteVariableConditionReadsCallerContext(t *testing.T) {
	g, err := NewGraph(
		[]Node{
			{ID: "1", Type: "start"},
			{ID: "2", Type: "condition", Data: map[string]interface{}{
				"conditionType": "variable",
				"variable":      "subscribed",
				"value":         "yes",
			}},
			{ID: "3", Type: "message", Data: map[string]interface{}{"label": "welcome back"}},
			{ID: "4", Type: "message", Data: map[string]interface{}{"label": "please subscribe"}},
		},
		[]Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3", Condition: "true"},
			{Source: "2", Target: "4", Condition: "false"},
		},
	)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	engine := NewEngine(g, nil)

	ctx := NewContext()
	ctx.Set("subscribed", "yes")
	result := engine.Execute(context.Background(), Request{Message: "m", Context: ctx})
	if result.Response != "welcome back" {
		t.Errorf("expected subscribed branch, got %q", result.Response)
	}

	result = engine.Execute(context.Background(), Request{Message: "m"})
	if result.Response != "please subscribe" {
		t.Errorf("expected unsubscribed branch, got %q", result.Response)
	}
}

func TestEngineIsSafeForConcurrentExecutions(t *testing.T) {
	engine := NewEngine(greetingGraph(t), nil)

	done := make(chan string, 10)
	for i := 0; i < 10; i++ {
		go func() {
			r := engine.Execute(context.Background(), Request{Message: "hello"})
			done <- r.Response
		}()
	}
	for i := 0; i < 10; i++ {
		if got := <-done; got != "Hi!" {
			t.Errorf("expected Hi! from concurrent run, got %q", got)
		}
	}
}
