// Package bots loads bot definitions exported by the authoring surface and
// serves them by ID. The registry only reads definitions; it never writes
// or edits them.
package bots

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/botweaver/engine/internal/workflow"
)

// Definition is one bot definition file.
type Definition struct {
	Version  int             `json:"version"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Workflow json.RawMessage `json:"workflow"`
}

// Bot is a loaded bot ready for execution.
type Bot struct {
	ID     string
	Name   string
	Graph  *workflow.Graph
	Engine *workflow.Engine
}

// Registry maintains the mapping of bot IDs to loaded bots.
type Registry struct {
	mu   sync.RWMutex
	bots map[string]*Bot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]*Bot)}
}

// Get returns a bot by ID, or nil if not found.
func (r *Registry) Get(id string) *Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bots[id]
}

// All returns all loaded bots.
func (r *Registry) All() []*Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Bot, 0, len(r.bots))
	for _, b := range r.bots {
		out = append(out, b)
	}
	return out
}

// Register adds or replaces a bot.
func (r *Registry) Register(b *Bot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[b.ID] = b
}

// LoadDefinition parses a bot definition and builds its workflow graph and
// engine. Validation problems in the graph are returned alongside the bot:
// every reported problem has a runtime fallback, so a bot with warnings is
// still served.
func LoadDefinition(data []byte, generator workflow.Generator) (*Bot, []error, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, nil, fmt.Errorf("failed to parse bot definition: %w", err)
	}
	if def.Version != 1 {
		return nil, nil, fmt.Errorf("unsupported bot definition version: %d", def.Version)
	}
	if def.ID == "" {
		return nil, nil, fmt.Errorf("bot definition has empty id")
	}

	var graph *workflow.Graph
	var err error
	if len(def.Workflow) > 0 {
		graph, err = workflow.Parse(def.Workflow)
		if err != nil {
			return nil, nil, fmt.Errorf("bot %s: %w", def.ID, err)
		}
	} else {
		graph, _ = workflow.NewGraph(nil, nil)
	}

	return &Bot{
		ID:     def.ID,
		Name:   def.Name,
		Graph:  graph,
		Engine: workflow.NewEngine(graph, generator),
	}, graph.Validate(), nil
}

// LoadDir loads every *.json bot definition in dir into the registry.
func (r *Registry) LoadDir(dir string, generator workflow.Generator) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read bots directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read bot definition %s: %w", path, err)
		}

		bot, _, err := LoadDefinition(data, generator)
		if err != nil {
			return err
		}
		r.Register(bot)
	}

	return nil
}
