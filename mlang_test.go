package mlang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlang-ai/mlang/compiler"
	"github.com/mlang-ai/mlang/invoke"
	"github.com/mlang-ai/mlang/parser"
)

const validSource = `
swarm pipeline {
    agent researcher {
        role: "Research the topic"
        capabilities: "llm"
        inputs: "topic"
        outputs: "findings"
        config: { model: "m" }
    }
    agent writer {
        role: "Write it up"
        capabilities: "llm"
        inputs: "findings"
        outputs: "article"
        config: { model: "m" }
    }
    workflow sequential {
        researcher(input: "topic", output: "findings")
        writer(input: "findings", output: "article")
    }
}
`

func TestCompile(t *testing.T) {
	plan, err := Compile(validSource)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", plan.Name)
	assert.Len(t, plan.Agents, 2)
}

func TestCompile_LexError(t *testing.T) {
	_, err := Compile(`swarm s @`)
	require.Error(t, err)
}

func TestCompile_ParseError(t *testing.T) {
	_, err := Compile(`swarm s { }`)
	require.Error(t, err)

	var parseErr *parser.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestCompile_SemanticError(t *testing.T) {
	source := `
swarm s {
    agent a { role: "r" capabilities: "llm" }
    workflow sequential { a(input: "x", output: "y") }
}
`
	_, err := Compile(source)
	require.Error(t, err)

	var semErr *compiler.SemanticError
	assert.ErrorAs(t, err, &semErr)
}

func TestRuntime_Validate(t *testing.T) {
	rt := New()

	v := rt.Validate(validSource)
	assert.True(t, v.Valid)
	assert.NoError(t, v.Err)
	assert.Equal(t, 2, v.Agents)
	assert.Equal(t, 1, v.Workflows)
	assert.Equal(t, 2, v.Steps)
}

func TestRuntime_ValidateInvalid(t *testing.T) {
	rt := New()

	v := rt.Validate(`swarm broken {`)
	assert.False(t, v.Valid)
	assert.Error(t, v.Err)
	assert.Zero(t, v.Agents)
}

func TestRuntime_Execute(t *testing.T) {
	mock := invoke.NewMock()
	mock.AddResponse("researcher", "the findings")
	mock.AddResponse("writer", "the article")

	rt := New(func(o *Options) { o.Invoker = mock })

	res, err := rt.Execute(context.Background(), validSource, map[string]any{"topic": "go"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "the article", res.Outputs["article"])
	assert.Len(t, res.Steps, 2)
}

func TestRuntime_ExecuteCompileErrorReturned(t *testing.T) {
	rt := New()

	res, err := rt.Execute(context.Background(), `swarm nope {`, nil)
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestRuntime_ToolRegistration(t *testing.T) {
	rt := New()
	rt.RegisterToolFunc("lookup", "finds things", func(ctx context.Context, args map[string]any) (any, error) {
		return "found", nil
	})

	assert.Equal(t, []string{"lookup"}, rt.Tools().Names())
}

func TestRuntime_AgentFactory(t *testing.T) {
	source := `
swarm s {
    agent custom { role: "r" capabilities: "special" }
    workflow sequential { custom(input: "x", output: "y") }
}
`
	rt := New()
	rt.RegisterAgentFactory("special", func(agent *compiler.ResolvedAgent) (invoke.Invoker, error) {
		return invoke.Func(func(ctx context.Context, req invoke.Request) (invoke.Response, error) {
			return invoke.Response{Output: "custom result"}, nil
		}), nil
	})

	res, err := rt.Execute(context.Background(), source, map[string]any{"x": 1})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "custom result", res.Outputs["y"])
}

func TestRuntime_InstancesAreIsolated(t *testing.T) {
	rt1 := New()
	rt2 := New()

	rt1.RegisterToolFunc("only_in_one", "", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})

	assert.Len(t, rt1.Tools().Names(), 1)
	assert.Empty(t, rt2.Tools().Names())
}

func TestTemplate_GeneratedSourceValidates(t *testing.T) {
	rt := New()

	source := rt.Template("starter")
	v := rt.Validate(source)
	assert.True(t, v.Valid, "template must compile: %v", v.Err)
	assert.Equal(t, 2, v.Agents)

	// Empty name falls back to a default.
	fallback := rt.Template("")
	assert.Contains(t, fallback, "swarm my_swarm")
}
