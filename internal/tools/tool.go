// Package tools implements the example tools exposed to the speech model:
// calculator, weather lookup, and database query.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownTool is returned when the model requests a tool that is not registered.
var ErrUnknownTool = errors.New("tools: unknown tool") //nolint:gochecknoglobals // sentinel error

// Tool is one callable capability. Input is the raw JSON arguments from the
// model; the returned string is fed back to the model verbatim.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry holds the tool set offered to a model session. It satisfies the
// agent loop's dispatch contract.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Run executes a registered tool by name.
func (r *Registry) Run(ctx context.Context, name string, input json.RawMessage) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tools.Registry.Run(%q): %w", name, ErrUnknownTool)
	}

	result, err := t.Run(ctx, input)
	if err != nil {
		return "", fmt.Errorf("tools.Registry.Run(%q): %w", name, err)
	}
	return result, nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
