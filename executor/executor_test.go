package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlang-ai/mlang/compiler"
	"github.com/mlang-ai/mlang/invoke"
	"github.com/mlang-ai/mlang/lexer"
	"github.com/mlang-ai/mlang/parser"
	"github.com/mlang-ai/mlang/tool"
)

func compilePlan(t *testing.T, source string) *compiler.Plan {
	t.Helper()
	tokens, err := lexer.Tokenize(source)
	require.NoError(t, err)
	sw, err := parser.Parse(tokens)
	require.NoError(t, err)
	plan, err := compiler.Compile(sw)
	require.NoError(t, err)
	return plan
}

func TestExecute_SequentialPropagation(t *testing.T) {
	source := `
swarm pipeline {
    agent first { role: "r" capabilities: "llm" config: { model: "m" } }
    agent second { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential {
        first(input: "seed", output: "mid")
        second(input: "mid", output: "final", transform: "to_string")
    }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("first", "intermediate value")
	mock.AddResponse("second", 42)

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"seed": "start"})

	require.True(t, res.Success)
	require.NoError(t, res.Err)
	assert.Equal(t, "intermediate value", res.Outputs["mid"])
	assert.Equal(t, "42", res.Outputs["final"]) // to_string applied

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "start", calls[0].Inputs["seed"])
	assert.Equal(t, "intermediate value", calls[1].Inputs["mid"])
}

func TestExecute_ParallelMergeWaitsForProducers(t *testing.T) {
	source := `
swarm fanout {
    agent left { role: "r" capabilities: "llm" config: { model: "m" } }
    agent right { role: "r" capabilities: "llm" config: { model: "m" } }
    agent merge { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow parallel {
        left(input: "seed", output: "a")
        right(input: "seed", output: "b")
        merge(input: "a, b", output: "combined")
    }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("left", "left result")
	mock.AddResponse("right", "right result")
	mock.AddResponse("merge", "merged")
	mock.SetDelay("left", 50*time.Millisecond)
	mock.SetDelay("right", 120*time.Millisecond)

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"seed": "s"})

	require.True(t, res.Success)
	assert.Equal(t, "merged", res.Outputs["combined"])

	// The merge step must have seen both sibling outputs despite their
	// asymmetric delays.
	calls := mock.Calls()
	var mergeReq *invoke.Request
	for i := range calls {
		if calls[i].Agent.Name == "merge" {
			mergeReq = &calls[i]
		}
	}
	require.NotNil(t, mergeReq)
	assert.Equal(t, "left result", mergeReq.Inputs["a"])
	assert.Equal(t, "right result", mergeReq.Inputs["b"])
}

func TestExecute_ConditionalFirstTrueBranchOnly(t *testing.T) {
	source := `
swarm triage {
    agent fast { role: "r" capabilities: "llm" config: { model: "m" } }
    agent slow { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow conditional {
        fast(input: "score", output: "route_fast")
        slow(input: "score", output: "route_slow")
        conditional: ["score < 5", "default"]
    }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("fast", "took fast path")

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"score": 3})

	require.True(t, res.Success)
	assert.Equal(t, "took fast path", res.Outputs["route_fast"])
	assert.NotContains(t, res.Outputs, "route_slow")
	assert.Equal(t, 1, mock.CallCount("fast"))
	assert.Equal(t, 0, mock.CallCount("slow"))

	skipped := res.StepsFor("slow")
	require.Len(t, skipped, 1)
	assert.True(t, skipped[0].Skipped)
	assert.Zero(t, skipped[0].Attempts)
}

func TestExecute_ConditionalDefaultBranch(t *testing.T) {
	source := `
swarm triage {
    agent fast { role: "r" capabilities: "llm" config: { model: "m" } }
    agent slow { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow conditional {
        fast(input: "score", output: "route_fast")
        slow(input: "score", output: "route_slow")
        conditional: ["score < 5", "default"]
    }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("slow", "took slow path")

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"score": 9})

	require.True(t, res.Success)
	assert.Equal(t, "took slow path", res.Outputs["route_slow"])
	assert.Equal(t, 0, mock.CallCount("fast"))
}

func TestExecute_LoopRunsToBound(t *testing.T) {
	source := `
swarm refine {
    agent critic { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow loop {
        critic(input: "draft", output: "verdict")
        loop: 5
    }
}
`
	mock := invoke.NewMock()
	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"draft": "v1"})

	require.True(t, res.Success)
	assert.Equal(t, []int{5}, res.Iterations)
	assert.Equal(t, 5, mock.CallCount("critic"))

	steps := res.StepsFor("critic")
	require.Len(t, steps, 5)
	assert.Equal(t, 1, steps[0].Iteration)
	assert.Equal(t, 5, steps[4].Iteration)
}

func TestExecute_LoopStopsOnContinueVariable(t *testing.T) {
	source := `
swarm refine {
    agent critic { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow loop {
        critic(input: "draft", output: "keep_going")
        loop: 5
        continue: "keep_going"
    }
}
`
	// The critic approves on its second look: keep_going turns false.
	calls := 0
	inv := invoke.Func(func(ctx context.Context, req invoke.Request) (invoke.Response, error) {
		calls++
		return invoke.Response{Output: calls < 2}, nil
	})

	exec := New(func(o *Options) { o.Invoker = inv })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"draft": "v1"})

	require.True(t, res.Success)
	assert.Equal(t, []int{2}, res.Iterations)
	assert.Equal(t, 2, calls)
}

func TestExecute_LoopIterationsRecordedPerWorkflow(t *testing.T) {
	source := `
swarm s {
    agent a { role: "r" capabilities: "llm" config: { model: "m" } }
    agent b { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow loop {
        a(input: "x", output: "y")
        loop: 3
    }
    workflow loop {
        b(input: "x", output: "z")
        loop: 2
    }
}
`
	mock := invoke.NewMock()
	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	require.True(t, res.Success)
	assert.Equal(t, []int{3, 2}, res.Iterations)
	assert.Equal(t, 3, mock.CallCount("a"))
	assert.Equal(t, 2, mock.CallCount("b"))
}

func TestExecute_RetryPolicyRecovers(t *testing.T) {
	source := `
swarm s {
    agent flaky { role: "r" capabilities: "llm" config: { model: "m" retry: 2 } }
    workflow sequential { flaky(input: "x", output: "y", error: "retry") }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("flaky", "finally")
	mock.FailTimes("flaky", 2, errors.New("transient"))

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	require.True(t, res.Success)
	assert.Equal(t, "finally", res.Outputs["y"])

	steps := res.StepsFor("flaky")
	require.Len(t, steps, 1)
	assert.Equal(t, 3, steps[0].Attempts)
}

func TestExecute_RetryExhaustedAborts(t *testing.T) {
	source := `
swarm s {
    agent flaky { role: "r" capabilities: "llm" config: { model: "m" retry: 1 } }
    agent after { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential {
        flaky(input: "x", output: "y", error: "retry")
        after(input: "y", output: "z")
    }
}
`
	mock := invoke.NewMock()
	mock.FailTimes("flaky", 5, errors.New("still broken"))

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Equal(t, 2, mock.CallCount("flaky"))
	assert.Equal(t, 0, mock.CallCount("after"))
}

func TestExecute_SkipPolicyContinues(t *testing.T) {
	source := `
swarm s {
    agent flaky { role: "r" capabilities: "llm" config: { model: "m" } }
    agent after { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential {
        flaky(input: "x", output: "y", error: "skip")
        after(input: "x", output: "z")
    }
}
`
	mock := invoke.NewMock()
	mock.FailTimes("flaky", 1, errors.New("broken"))
	mock.AddResponse("after", "ran anyway")

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	require.True(t, res.Success)
	assert.Equal(t, "ran anyway", res.Outputs["z"])
	assert.NotContains(t, res.Outputs, "y")
}

func TestExecute_AbortIsDefaultPolicy(t *testing.T) {
	source := `
swarm s {
    agent broken { role: "r" capabilities: "llm" config: { model: "m" } }
    agent after { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential {
        broken(input: "x", output: "y")
        after(input: "x", output: "z")
    }
}
`
	mock := invoke.NewMock()
	mock.FailTimes("broken", 1, errors.New("boom"))

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Equal(t, 0, mock.CallCount("after"))

	var runErr *RuntimeError
	require.ErrorAs(t, res.Err, &runErr)
	assert.Equal(t, FailInvoker, runErr.Kind)
	assert.Equal(t, "broken", runErr.Step)
}

func TestExecute_ParallelAbortDiscardsLateFinishers(t *testing.T) {
	source := `
swarm s {
    agent fastfail { role: "r" capabilities: "llm" config: { model: "m" } }
    agent slowok { role: "r" capabilities: "llm" config: { model: "m" } }
    agent waiter { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow parallel {
        fastfail(input: "seed", output: "a")
        slowok(input: "seed", output: "b")
        waiter(input: "b", output: "c")
    }
}
`
	mock := invoke.NewMock()
	// fastfail fails while slowok is still mid-invocation, so slowok finishes
	// only after the abort and its output must not reach the store.
	mock.SetDelay("fastfail", 30*time.Millisecond)
	mock.FailTimes("fastfail", 1, errors.New("boom"))
	mock.AddResponse("slowok", "late value")
	mock.SetDelay("slowok", 150*time.Millisecond)

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"seed": 1})

	assert.False(t, res.Success)
	require.Error(t, res.Err)
	assert.NotContains(t, res.Outputs, "b")
	assert.NotContains(t, res.Outputs, "c")

	slow := res.StepsFor("slowok")
	require.Len(t, slow, 1)
	assert.True(t, slow[0].Success)
	assert.True(t, slow[0].Discarded)
	assert.Empty(t, slow[0].Outputs)

	// waiter was still blocked on slowok when the abort landed, so it is
	// never dispatched at all.
	assert.Equal(t, 0, mock.CallCount("waiter"))
	assert.Empty(t, res.StepsFor("waiter"))
}

func TestExecute_TimeoutClassified(t *testing.T) {
	source := `
swarm s {
    agent slow { role: "r" capabilities: "llm" config: { model: "m" timeout: 1 } }
    workflow sequential { slow(input: "x", output: "y") }
}
`
	mock := invoke.NewMock()
	mock.SetDelay("slow", 2*time.Second)

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	assert.False(t, res.Success)

	var runErr *RuntimeError
	require.ErrorAs(t, res.Err, &runErr)
	assert.Equal(t, FailTimeout, runErr.Kind)
}

func TestExecute_MissingVariable(t *testing.T) {
	source := `
swarm s {
    agent a { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential { a(input: "never_bound", output: "y") }
}
`
	exec := New()
	res := exec.Execute(context.Background(), compilePlan(t, source), nil)

	assert.False(t, res.Success)

	var runErr *RuntimeError
	require.ErrorAs(t, res.Err, &runErr)
	assert.Equal(t, FailMissingVariable, runErr.Kind)
}

func TestExecute_ToolAgent(t *testing.T) {
	source := `
swarm s {
    agent lookup { role: "r" capabilities: "mcp, weather, missing_tool" }
    workflow sequential { lookup(input: "city", output: "report") }
}
`
	tools := tool.NewRegistry()
	tools.RegisterFunc("weather", "canned forecast", func(ctx context.Context, args map[string]any) (any, error) {
		return "sunny in " + args["city"].(string), nil
	})

	exec := New(func(o *Options) { o.Tools = tools })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"city": "Berlin"})

	require.True(t, res.Success)
	report, ok := res.Outputs["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sunny in Berlin", report["weather"])
	assert.Equal(t, map[string]any{"error": "tool not available"}, report["missing_tool"])
}

func TestExecute_FactoryOverridesBuiltins(t *testing.T) {
	source := `
swarm s {
    agent custom { role: "r" capabilities: "llm, my_type" config: { model: "m" } }
    workflow sequential { custom(input: "x", output: "y") }
}
`
	factory := invoke.Factory(func(agent *compiler.ResolvedAgent) (invoke.Invoker, error) {
		return invoke.Func(func(ctx context.Context, req invoke.Request) (invoke.Response, error) {
			return invoke.Response{Output: "from factory"}, nil
		}), nil
	})

	exec := New(func(o *Options) {
		o.Factories = map[string]invoke.Factory{"my_type": factory}
	})
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	require.True(t, res.Success)
	assert.Equal(t, "from factory", res.Outputs["y"])
}

func TestExecute_NestedSwarm(t *testing.T) {
	source := `
swarm outer {
    agent composite {
        role: "r"
        swarm inner {
            agent leaf { role: "r" capabilities: "llm" config: { model: "m" } }
            workflow sequential { leaf(input: "topic", output: "detail") }
        }
    }
    workflow sequential { composite(input: "topic", output: "expanded") }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("leaf", "leaf output")

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"topic": "go"})

	require.True(t, res.Success)
	expanded, ok := res.Outputs["expanded"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "leaf output", expanded["detail"])
	assert.Equal(t, "go", expanded["topic"])
}

func TestExecute_FilterWithholdsOutput(t *testing.T) {
	source := `
swarm s {
    agent quiet { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential { quiet(input: "x", output: "y", filter: "non_empty") }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("quiet", "")

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	require.True(t, res.Success)
	assert.NotContains(t, res.Outputs, "y")

	steps := res.StepsFor("quiet")
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Success)
	assert.Empty(t, steps[0].Outputs)
}

func TestExecute_MultipleWorkflowsRunInOrder(t *testing.T) {
	source := `
swarm s {
    agent a { role: "r" capabilities: "llm" config: { model: "m" } }
    agent b { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential { a(input: "seed", output: "mid") }
    workflow sequential { b(input: "mid", output: "final") }
}
`
	mock := invoke.NewMock()
	mock.AddResponse("a", "first")
	mock.AddResponse("b", "second")

	exec := New(func(o *Options) { o.Invoker = mock })
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"seed": 1})

	require.True(t, res.Success)
	assert.Equal(t, "second", res.Outputs["final"])

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Agent.Name)
	assert.Equal(t, "first", calls[1].Inputs["mid"])
}

func TestExecute_ResultMetadata(t *testing.T) {
	source := `
swarm named {
    agent a { role: "r" capabilities: "llm" config: { model: "m" } }
    workflow sequential { a(input: "x", output: "y") }
}
`
	exec := New()
	res := exec.Execute(context.Background(), compilePlan(t, source), map[string]any{"x": 1})

	assert.Equal(t, "named", res.Swarm)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.StartedAt.IsZero())
	assert.Greater(t, res.Duration, time.Duration(0))
}
