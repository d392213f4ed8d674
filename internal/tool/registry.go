package tool

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flemzord/relaybot/internal/provider"
)

// maxOutputLen caps the tool output fed back to the model.
const maxOutputLen = 16 << 10

// Registry holds registered tools.
// It is instance-based (not global) for better testability.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
// It returns ErrEmptyToolName for a blank name and ErrDuplicateTool if a
// tool with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	return nil
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns the provider-facing definitions of every tool,
// sorted by name so requests are deterministic.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, provider.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(defs, func(a, b provider.ToolDefinition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return defs
}

// Execute looks up and runs the named tool. Oversized output is truncated.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (Output, error) {
	t, err := r.Get(name)
	if err != nil {
		return Output{}, err
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		return Output{}, fmt.Errorf("tool %s: %w", name, err)
	}
	out.Content = truncate(out.Content)
	return out, nil
}

// DecodeArgs unmarshals tool arguments into dst, wrapping failures with
// ErrInvalidArguments. Empty arguments decode as an empty object.
func DecodeArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

// truncate walks back to a valid UTF-8 rune boundary to avoid splitting
// multi-byte characters when the cut falls mid-rune.
func truncate(s string) string {
	if len(s) <= maxOutputLen {
		return s
	}
	i := maxOutputLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "...(truncated)"
}
