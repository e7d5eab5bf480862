package workflow

import "fmt"

// Node represents a single step in a dialogue workflow.
// Allowed types: start, message, condition, generation. Unknown types are
// traversed without effect so authoring tools can introduce new variants.
type Node struct {
	ID   string                 `json:"id"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Edge represents a directed transition between two nodes.
// Condition carries the outcome label required to take this edge out of a
// condition node; it is empty for unconditional transitions.
type Edge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
}

// Graph is the immutable workflow loaded for one bot.
// Edge order is meaningful: among edges sharing a source, the first listed
// edge wins whenever more than one could be taken.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	edges   []Edge
	startID string
}

// NodeNotFoundError is returned by NodeByID for an unknown node ID.
type NodeNotFoundError struct {
	ID string
}

func (e *NodeNotFoundError) Error() string {
	return "node not found: " + e.ID
}

// NewGraph builds a graph from node and edge lists.
// Node order is preserved so the start-node fallback is deterministic.
// Duplicate node IDs are a configuration error.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*Node, len(nodes)),
		edges: edges,
	}

	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node %d has empty id", i)
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)
	}

	g.startID = resolveStart(nodes)

	return g, nil
}

// resolveStart returns the ID of the node tagged "start", or the first node
// in declared order when no start node exists. An empty graph has no start.
func resolveStart(nodes []Node) string {
	for _, n := range nodes {
		if n.Type == "start" {
			return n.ID
		}
	}
	if len(nodes) > 0 {
		return nodes[0].ID
	}
	return ""
}

// StartID returns the resolved start node ID, empty for an empty graph.
func (g *Graph) StartID() string {
	return g.startID
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// NodeByID returns the node with the given ID.
func (g *Graph) NodeByID(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	return n, nil
}

// EdgesFrom returns the edges leaving the given node in declaration order.
func (g *Graph) EdgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Validate reports configuration errors that can be detected before any
// execution: edges referencing unknown nodes, a start node missing from
// the node map, and condition nodes with unloadable regex patterns.
// Execution does not require a valid graph; every reported problem also
// has a documented runtime fallback.
func (g *Graph) Validate() []error {
	var errs []error

	if g.startID != "" {
		if _, ok := g.nodes[g.startID]; !ok {
			errs = append(errs, fmt.Errorf("start node %s not present in graph", g.startID))
		}
	}

	for _, e := range g.edges {
		if _, ok := g.nodes[e.Source]; !ok {
			errs = append(errs, fmt.Errorf("edge source %s not present in graph", e.Source))
		}
		if _, ok := g.nodes[e.Target]; !ok {
			errs = append(errs, fmt.Errorf("edge target %s not present in graph", e.Target))
		}
	}

	for _, id := range g.order {
		n := g.nodes[id]
		if n.Type != "condition" {
			continue
		}
		if err := validateCondition(n); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", id, err))
		}
	}

	return errs
}
