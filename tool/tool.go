// Package tool implements the callable-tool subsystem backing mcp-capable
// agents. Tools are plain named callables kept in an explicit Registry owned
// by the runtime; registration overwrites by name and is expected to happen
// at setup time, not under execution load.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is a named callable an mcp-capable agent can fan out to.
//
// Implementations should be safe for concurrent use: parallel workflows call
// tools from multiple goroutines.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Call executes the tool against the step's input variables.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Error wraps failures raised by tool execution with the tool's name.
type Error struct {
	Tool    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// CallFunc is the signature accepted by NewFunc and Registry.RegisterFunc.
type CallFunc func(ctx context.Context, args map[string]any) (any, error)

// Func adapts a plain Go function to the Tool interface.
type Func struct {
	name        string
	description string
	fn          CallFunc
}

// NewFunc constructs a Func tool from a name, description and implementation.
func NewFunc(name, description string, fn CallFunc) *Func {
	return &Func{name: name, description: description, fn: fn}
}

// Name returns the tool name.
func (t *Func) Name() string { return t.name }

// Description returns the tool description.
func (t *Func) Description() string { return t.description }

// Call invokes the wrapped function, normalizing errors to *Error.
func (t *Func) Call(ctx context.Context, args map[string]any) (any, error) {
	result, err := t.fn(ctx, args)
	if err != nil {
		if _, ok := err.(*Error); ok {
			return nil, err
		}
		return nil, &Error{Tool: t.name, Message: err.Error()}
	}
	return result, nil
}

// Registry maps tool names to callables. Safe for concurrent access; each
// Register overwrites any previous tool of the same name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, overwriting by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// RegisterFunc registers a plain function under the given name.
func (r *Registry) RegisterFunc(name, description string, fn CallFunc) {
	r.Register(NewFunc(name, description, fn))
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
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
