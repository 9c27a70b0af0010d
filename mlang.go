// Package mlang provides a high-level façade over the M language pipeline
// (lexer, parser, compiler, executor) enabling rapid construction of
// multi-agent swarm programs. Most applications interact with this package by:
//  1. Creating a Runtime via New() (optionally overriding the default mock invoker)
//  2. Registering tools and agent factories
//  3. Validating source with Validate or running it with Execute
//
// The façade delegates orchestration to executor.Executor while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a model-backed invoker
// and a structured logger.
package mlang

import (
	"context"
	"sync"

	"github.com/mlang-ai/mlang/compiler"
	"github.com/mlang-ai/mlang/executor"
	"github.com/mlang-ai/mlang/invoke"
	"github.com/mlang-ai/mlang/lexer"
	"github.com/mlang-ai/mlang/logging"
	"github.com/mlang-ai/mlang/parser"
	"github.com/mlang-ai/mlang/tool"
)

// Options configures the Runtime instance.
type Options struct {
	// Invoker handles llm-capable agent calls (defaults to invoke.NewMock()).
	Invoker invoke.Invoker

	// Tools backs mcp-capable agents (defaults to an empty registry).
	Tools *tool.Registry

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// TemplateGenerator produces starter programs (defaults to the built-in one).
	TemplateGenerator TemplateGenerator
}

// Runtime is the high-level façade aggregating the pipeline stages and the
// per-instance tool and factory registries. Two Runtimes never share state.
type Runtime struct {
	opts      Options
	tools     *tool.Registry
	mu        sync.RWMutex
	factories map[string]invoke.Factory
}

// New creates a new Runtime instance with optional overrides. Any unset
// dependency is initialized with a local in-memory implementation.
func New(optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Invoker:           invoke.NewMock(),
		Tools:             tool.NewRegistry(),
		Logger:            logging.NoOpLogger{},
		TemplateGenerator: DefaultTemplateGenerator{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runtime{
		opts:      opts,
		tools:     opts.Tools,
		factories: make(map[string]invoke.Factory),
	}
}

// RegisterTool adds a tool to this runtime's registry. Registering the same
// name again replaces the previous tool.
func (r *Runtime) RegisterTool(t tool.Tool) { r.tools.Register(t) }

// RegisterToolFunc is a convenience wrapper around RegisterTool.
func (r *Runtime) RegisterToolFunc(name, description string, fn tool.CallFunc) {
	r.tools.RegisterFunc(name, description, fn)
}

// RegisterAgentFactory maps a capability tag to an invoker factory. Agents
// carrying that tag are invoked through the factory instead of the built-in
// mechanisms.
func (r *Runtime) RegisterAgentFactory(tag string, factory invoke.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = factory
}

// Tools exposes the runtime's tool registry.
func (r *Runtime) Tools() *tool.Registry { return r.tools }

// Validation reports the outcome of running source through the front half of
// the pipeline without executing it.
type Validation struct {
	Valid     bool
	Agents    int
	Workflows int
	Steps     int
	Err       error
}

// Validate lexes, parses and compiles source, returning structural counts on
// success or the first pipeline error.
func (r *Runtime) Validate(source string) Validation {
	plan, err := Compile(source)
	if err != nil {
		return Validation{Err: err}
	}
	steps := 0
	for _, wf := range plan.Workflows {
		steps += len(wf.Steps)
	}
	return Validation{
		Valid:     true,
		Agents:    len(plan.Agents),
		Workflows: len(plan.Workflows),
		Steps:     steps,
	}
}

// Execute compiles and runs source with the given initial inputs. Compile
// errors are returned directly; execution outcomes (including failures) are
// carried by the Result.
func (r *Runtime) Execute(ctx context.Context, source string, inputs map[string]any) (*executor.Result, error) {
	plan, err := Compile(source)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	factories := make(map[string]invoke.Factory, len(r.factories))
	for tag, f := range r.factories {
		factories[tag] = f
	}
	r.mu.RUnlock()

	exec := executor.New(func(o *executor.Options) {
		o.Invoker = r.opts.Invoker
		o.Tools = r.tools
		o.Factories = factories
		o.Logger = r.opts.Logger
	})
	return exec.Execute(ctx, plan, inputs), nil
}

// Template returns a starter program from the runtime's template generator.
func (r *Runtime) Template(name string) string {
	return r.opts.TemplateGenerator.Generate(name)
}

// Compile runs source through the lexer, parser and compiler and returns the
// execution plan.
func Compile(source string) (*compiler.Plan, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	sw, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(sw)
}
