package workflow

import (
	"encoding/json"
	"fmt"
	"os"
)

// rawGraph mirrors the JSON shape produced by the authoring surface.
// Edge conditions may appear either as a top-level "condition" field or
// nested under "data.condition"; both forms occur in exported workflows.
type rawGraph struct {
	Nodes []Node    `json:"nodes"`
	Edges []rawEdge `json:"edges"`
}

type rawEdge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
	Data      struct {
		Condition string `json:"condition,omitempty"`
	} `json:"data"`
}

// Parse builds a Graph from workflow JSON.
func Parse(data []byte) (*Graph, error) {
	var raw rawGraph
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse workflow JSON: %w", err)
	}

	edges := make([]Edge, 0, len(raw.Edges))
	for _, e := range raw.Edges {
		cond := e.Condition
		if cond == "" {
			cond = e.Data.Condition
		}
		edges = append(edges, Edge{Source: e.Source, Target: e.Target, Condition: cond})
	}

	return NewGraph(raw.Nodes, edges)
}

// Load reads and parses a workflow JSON file.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Parse(data)
}
