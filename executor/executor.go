// Package executor interprets compiled execution plans against a live
// variable store. One store and one result exist per Execute call; nothing is
// shared across executions. Agent invocation is delegated to the injected
// invoke.Invoker capability, so the executor never embeds a concrete model
// call.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mlang-ai/mlang/ast"
	"github.com/mlang-ai/mlang/compiler"
	"github.com/mlang-ai/mlang/invoke"
	"github.com/mlang-ai/mlang/logging"
	"github.com/mlang-ai/mlang/tool"
)

// errAborted stops scheduling of not-yet-started steps after an abort-policy
// failure. Already-dispatched parallel siblings are allowed to finish; their
// results are discarded.
var errAborted = errors.New("execution aborted")

// Options configures an Executor.
type Options struct {
	// Invoker handles llm-capable agent invocations.
	Invoker invoke.Invoker
	// Tools backs mcp-capable agents. Defaults to an empty registry.
	Tools *tool.Registry
	// Factories maps custom agent type names to invoker factories.
	Factories map[string]invoke.Factory
	// Logger receives step-level execution logs. Defaults to NoOp.
	Logger logging.Logger
}

// Executor interprets execution plans. It holds no per-execution state and is
// safe for concurrent Execute calls.
type Executor struct {
	invoker   invoke.Invoker
	tools     *tool.Registry
	factories map[string]invoke.Factory
	logger    logging.Logger
}

// New constructs an Executor with optional overrides. The defaults (mock
// invoker, empty tool registry, no-op logger) are safe for local development
// and tests.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{
		Invoker: invoke.NewMock(),
		Tools:   tool.NewRegistry(),
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		invoker:   opts.Invoker,
		tools:     opts.Tools,
		factories: opts.Factories,
		logger:    opts.Logger,
	}
}

// Execute runs the plan against a fresh variable store seeded from
// initialInputs. It blocks until every workflow has finished and always
// returns a structured Result, even on total failure.
func (e *Executor) Execute(ctx context.Context, plan *compiler.Plan, initialInputs map[string]any) *Result {
	result := newResult(plan.Name)
	r := &run{
		exec:   e,
		plan:   plan,
		store:  NewStore(initialInputs),
		result: result,
	}

	e.logger.Info("executing swarm", "swarm", plan.Name, "workflows", len(plan.Workflows))
	for _, wf := range plan.Workflows {
		if err := r.workflow(ctx, wf); err != nil {
			if !errors.Is(err, errAborted) {
				result.fail(err)
			}
			break
		}
	}
	result.finish(r.store)
	e.logger.Info("swarm finished", "swarm", plan.Name, "success", result.Success, "duration", result.Duration)
	return result
}

// run is the per-execution state: one store, one result, one abort flag.
type run struct {
	exec    *Executor
	plan    *compiler.Plan
	store   *Store
	result  *Result
	aborted atomic.Bool
}

func (r *run) workflow(ctx context.Context, wf *compiler.Workflow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch wf.Kind {
	case ast.Sequential:
		return r.sequential(ctx, wf)
	case ast.Parallel:
		return r.parallel(ctx, wf)
	case ast.Conditional:
		return r.conditional(ctx, wf)
	case ast.Loop:
		return r.loop(ctx, wf)
	default:
		return fmt.Errorf("unknown workflow kind %q", wf.Kind)
	}
}

// sequential runs step calls strictly in declared order.
func (r *run) sequential(ctx context.Context, wf *compiler.Workflow) error {
	for _, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		sr := r.runStep(ctx, step, 0)
		r.result.addStep(sr)
		if sr.Err != nil {
			if err := r.stepFailed(step, sr); err != nil {
				return err
			}
		}
	}
	return nil
}

// parallel dispatches every step concurrently. A step that consumes sibling
// outputs waits on its producers' completion signals before starting, so a
// merge step never runs ahead of the values it merges.
func (r *run) parallel(ctx context.Context, wf *compiler.Workflow) error {
	done := make([]chan struct{}, len(wf.Steps))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for i, step := range wf.Steps {
		wg.Add(1)
		go func(i int, step *compiler.Step) {
			defer wg.Done()
			defer close(done[i])

			// Completion, not success: a failed producer still unblocks its
			// consumers, which then fail with a missing variable of their own.
			for _, dep := range step.DependsOn {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return
				}
			}
			if r.aborted.Load() {
				return
			}
			sr := r.runStep(ctx, step, 0)
			r.result.addStep(sr)
			if sr.Err != nil && !sr.Discarded {
				_ = r.stepFailed(step, sr)
			}
		}(i, step)
	}
	wg.Wait()

	if r.aborted.Load() {
		return errAborted
	}
	return ctx.Err()
}

// conditional evaluates the branch conditions left-to-right against the
// current store and executes the single step paired with the first true one.
// Every other step is skipped entirely, with no invocation.
func (r *run) conditional(ctx context.Context, wf *compiler.Workflow) error {
	env := r.store.Snapshot()
	chosen := -1
	for i, cond := range wf.Conditions {
		ok, err := evalCondition(cond, env)
		if err != nil {
			r.exec.logger.Warn("condition treated as false", "condition", cond, "error", err)
		}
		if ok {
			chosen = i
			break
		}
	}

	for i, step := range wf.Steps {
		if i != chosen {
			r.result.addStep(&StepResult{Agent: step.Agent.Name, Skipped: true})
			continue
		}
		sr := r.runStep(ctx, step, 0)
		r.result.addStep(sr)
		if sr.Err != nil {
			if err := r.stepFailed(step, sr); err != nil {
				return err
			}
		}
	}
	return nil
}

// loop re-executes the full step sequence until the bound is reached or the
// continue variable evaluates false after an iteration. The bound always
// applies, guaranteeing termination.
func (r *run) loop(ctx context.Context, wf *compiler.Workflow) error {
	completed := 0
	defer func() { r.result.addIterations(completed) }()
	for iter := 1; iter <= wf.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, step := range wf.Steps {
			sr := r.runStep(ctx, step, iter)
			r.result.addStep(sr)
			if sr.Err != nil {
				if err := r.stepFailed(step, sr); err != nil {
					return err
				}
			}
		}
		completed = iter
		if wf.ContinueVar != "" {
			v, ok := r.store.Get(wf.ContinueVar)
			if !ok || !isTruthy(v) {
				r.exec.logger.Debug("loop stopped by continue variable", "variable", wf.ContinueVar, "iteration", iter)
				break
			}
		}
	}
	return nil
}

// stepFailed applies the step's error policy after all attempts are spent.
// skip leaves the outputs unset and continues; everything else (abort, an
// exhausted retry, or no policy at all) stops further scheduling.
func (r *run) stepFailed(step *compiler.Step, sr *StepResult) error {
	if step.OnError == ast.ErrorSkip {
		r.exec.logger.Warn("step skipped after failure", "agent", step.Agent.Name, "error", sr.Err)
		return nil
	}
	r.result.fail(sr.Err)
	r.aborted.Store(true)
	return errAborted
}

// runStep invokes one step, honoring the retry policy, then applies the
// transform and filter before writing outputs to the store.
func (r *run) runStep(ctx context.Context, step *compiler.Step, iteration int) *StepResult {
	sr := &StepResult{Agent: step.Agent.Name, Iteration: iteration}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	maxAttempts := 1
	if step.OnError == ast.ErrorRetry {
		maxAttempts = 1 + step.Agent.Config.Retry
	}

	var output any
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sr.Attempts = attempt
		output, err = r.invokeOnce(ctx, step)
		if err == nil {
			break
		}
		r.exec.logger.Warn("step invocation failed",
			"agent", step.Agent.Name, "attempt", attempt, "of", maxAttempts, "error", err)
	}
	if err != nil {
		sr.Err = err
		return sr
	}

	value, err := applyTransform(step.Transform, output)
	if err != nil {
		sr.Err = &RuntimeError{Kind: FailInvoker, Step: step.Agent.Name, Err: err}
		return sr
	}
	value, keep := applyFilter(step.Filter, value)

	sr.Success = true
	sr.Output = value
	if !keep {
		r.exec.logger.Debug("filter withheld step output", "agent", step.Agent.Name, "filter", step.Filter)
		return sr
	}
	if r.aborted.Load() {
		// A sibling aborted while this step was in flight. Let it finish but
		// do not apply its outputs.
		sr.Discarded = true
		return sr
	}

	outputs := make(map[string]any, len(step.Outputs))
	for _, name := range step.Outputs {
		outputs[name] = value
	}
	r.store.SetAll(outputs)
	sr.Outputs = outputs
	return sr
}

// invokeOnce gathers the step's inputs from the store and performs a single
// invocation bounded by the agent's configured timeout.
func (r *run) invokeOnce(ctx context.Context, step *compiler.Step) (any, error) {
	inputs := make(map[string]any, len(step.Inputs))
	for _, name := range step.Inputs {
		v, ok := r.store.Get(name)
		if !ok {
			return nil, &RuntimeError{
				Kind: FailMissingVariable,
				Step: step.Agent.Name,
				Err:  fmt.Errorf("variable %q is not bound", name),
			}
		}
		inputs[name] = v
	}

	invoker, err := r.invokerFor(step.Agent)
	if err != nil {
		return nil, &RuntimeError{Kind: FailInvoker, Step: step.Agent.Name, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, step.Agent.Config.Timeout)
	defer cancel()

	resp, err := invoker.Invoke(callCtx, invoke.Request{Agent: step.Agent, Inputs: inputs})
	if err != nil {
		kind := FailInvoker
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FailTimeout
		}
		return nil, &RuntimeError{Kind: kind, Step: step.Agent.Name, Err: err}
	}
	return resp.Output, nil
}

// invokerFor selects the invocation mechanism for an agent. A capability tag
// matching a registered factory wins; otherwise the compile-time capability
// kind decides.
func (r *run) invokerFor(agent *compiler.ResolvedAgent) (invoke.Invoker, error) {
	for _, tag := range agent.Capabilities {
		if factory, ok := r.exec.factories[tag]; ok {
			return factory(agent)
		}
	}
	switch agent.Kind {
	case compiler.KindSwarm:
		return &swarmInvoker{exec: r.exec}, nil
	case compiler.KindLLM:
		return r.exec.invoker, nil
	case compiler.KindMCP:
		return &toolInvoker{tools: r.exec.tools, logger: r.exec.logger}, nil
	case compiler.KindHybrid:
		return &hybridInvoker{
			llm:   r.exec.invoker,
			tools: &toolInvoker{tools: r.exec.tools, logger: r.exec.logger},
		}, nil
	default:
		return nil, fmt.Errorf("no invoker for capability kind %q", agent.Kind)
	}
}
