// Package invoke defines the agent-invocation capability the executor depends
// on. The executor never embeds a concrete model call: it drives whatever
// Invoker it was handed, and custom agent types plug in through Factory
// values registered with the runtime.
package invoke

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mlang-ai/mlang/compiler"
)

// Request carries one agent invocation: the resolved agent and the input
// variables gathered from the execution's variable store.
type Request struct {
	Agent  *compiler.ResolvedAgent
	Inputs map[string]any
}

// Response is the raw invocation result, before transforms and filters.
type Response struct {
	Output any
}

// Invoker executes a single agent invocation. Implementations must be safe
// for concurrent use; parallel workflows invoke them from multiple
// goroutines.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Factory builds an Invoker for a custom agent type. The runtime keeps a
// name-to-factory registry; an agent whose capability tags include a
// registered type name is invoked through that factory's product.
type Factory func(agent *compiler.ResolvedAgent) (Invoker, error)

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Invoke implements Invoker.
func (f Func) Invoke(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// FormatInputs renders the request inputs as deterministic "key: value"
// lines, the shape model-backed invokers feed into their prompts.
func FormatInputs(inputs map[string]any) string {
	if len(inputs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, inputs[k]))
	}
	return strings.Join(lines, "\n")
}
