package workflow

import (
	"context"

	"github.com/botweaver/engine/internal/events"
)

// Fixed responses returned when the workflow cannot produce one itself.
const (
	ResponseNoWorkflow            = "Sorry, this bot doesn't have a configured workflow."
	ResponseDefault               = "I'm not sure how to respond to that."
	ResponseGenerationFailed      = "Sorry, I encountered an error while processing your request."
	ResponseGenerationUnavailable = "AI processing is not available."
)

// DefaultSystemPrompt is used by generation nodes that configure none.
const DefaultSystemPrompt = "You are a helpful assistant."

// DefaultTemperature applies when a generation node omits temperature.
const DefaultTemperature = 0.7

// HistoryMessage is one turn of prior conversation handed to the engine.
// Sender is "user" or "bot".
type HistoryMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// GenerationRequest carries everything a generation backend needs for one
// completion call.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	History      []HistoryMessage
	Model        string
	Temperature  float64
}

// Generator is the outbound port to a text-generation backend. The engine
// treats it as opaque: any error becomes a fixed fallback response and the
// traversal continues. Implementations own their timeout policy via ctx.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Request is one execution call: a single inbound message plus optional
// history and a caller-owned context bag.
type Request struct {
	Message string
	History []HistoryMessage
	Context Context
}

// Result is the single response produced by one execution together with
// the mutated context.
type Result struct {
	Response string
	Context  Context
}

// Engine walks a workflow graph for one message at a time. It holds no
// per-execution state, so a single Engine may serve concurrent executions
// as long as each call gets its own Context.
type Engine struct {
	graph     *Graph
	generator Generator
}

// NewEngine creates an engine for the given graph. The generator may be
// nil, in which case generation nodes answer with a fixed notice.
func NewEngine(graph *Graph, generator Generator) *Engine {
	return &Engine{graph: graph, generator: generator}
}

// Execute processes one inbound message through the workflow and returns
// exactly one response plus the updated context.
//
// The traversal visits each node at most once: a revisited node terminates
// the walk. Authored loops ("ask again until valid") are therefore cut
// short after one pass; this matches the authoring surface's documented
// limitation and keeps runaway cycles impossible.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	execCtx := req.Context
	if execCtx == nil {
		execCtx = NewContext()
	}
	execCtx.Set(MessageKey, req.Message)

	if e.graph == nil || e.graph.Len() == 0 || e.graph.StartID() == "" {
		return Result{Response: ResponseNoWorkflow, Context: execCtx}
	}

	events.Emit("info", "execution.started", "", map[string]interface{}{
		"start_node": e.graph.StartID(),
	})

	current := e.graph.StartID()
	visited := make(map[string]bool, e.graph.Len())
	response := ""
	responded := false

	for current != "" && !visited[current] {
		visited[current] = true

		node, err := e.graph.NodeByID(current)
		if err != nil {
			// Dangling edge target: terminal, not an error to the caller.
			break
		}

		events.Emit("debug", "node.visited", "", map[string]interface{}{
			"node_id": node.ID,
			"type":    node.Type,
		})

		switch node.Type {
		case "condition":
			label := EvalCondition(node, req.Message, execCtx)
			current = e.selectConditionEdge(node.ID, label)
			continue
		case "message":
			tmpl, _ := node.Data["label"].(string)
			response = RenderTemplate(tmpl, execCtx)
			responded = true
		case "generation":
			response = e.generate(ctx, node, req, execCtx)
			responded = true
		}
		// start and unrecognized types pass through without effect.

		current = e.firstEdgeTarget(node.ID)
	}

	if !responded {
		response = ResponseDefault
	}

	events.Emit("info", "execution.completed", "", map[string]interface{}{
		"nodes_visited": len(visited),
	})

	return Result{Response: response, Context: execCtx}
}

// generate renders the node's system prompt and calls the generation port.
// Failures never abort the run; they produce a fixed fallback response.
func (e *Engine) generate(ctx context.Context, node *Node, req Request, execCtx Context) string {
	if e.generator == nil {
		return ResponseGenerationUnavailable
	}

	sysTmpl, _ := node.Data["systemPrompt"].(string)
	if sysTmpl == "" {
		sysTmpl = DefaultSystemPrompt
	}
	model, _ := node.Data["model"].(string)
	temperature := DefaultTemperature
	if v, ok := node.Data["temperature"].(float64); ok {
		temperature = v
	}

	out, err := e.generator.Generate(ctx, GenerationRequest{
		Prompt:       req.Message,
		SystemPrompt: RenderTemplate(sysTmpl, execCtx),
		History:      req.History,
		Model:        model,
		Temperature:  temperature,
	})
	if err != nil {
		events.Emit("error", "generation.failed", err.Error(), map[string]interface{}{
			"node_id": node.ID,
		})
		return ResponseGenerationFailed
	}
	return out
}

// selectConditionEdge picks the outgoing edge for an outcome label: the
// first edge tagged with the label itself, otherwise the first edge tagged
// "default", otherwise none (the traversal halts).
func (e *Engine) selectConditionEdge(nodeID, label string) string {
	edges := e.graph.EdgesFrom(nodeID)
	for _, edge := range edges {
		if edge.Condition == label {
			return edge.Target
		}
	}
	for _, edge := range edges {
		if edge.Condition == OutcomeDefault {
			return edge.Target
		}
	}
	return ""
}

// firstEdgeTarget returns the target of the first outgoing edge, or empty
// when the node is terminal. Only one path is ever taken per node.
func (e *Engine) firstEdgeTarget(nodeID string) string {
	edges := e.graph.EdgesFrom(nodeID)
	if len(edges) == 0 {
		return ""
	}
	return edges[0].Target
}
