package executor

import (
	"context"
	"fmt"

	"github.com/mlang-ai/mlang/invoke"
	"github.com/mlang-ai/mlang/logging"
	"github.com/mlang-ai/mlang/tool"
)

// reservedTags mark built-in invocation mechanisms rather than tool names.
var reservedTags = map[string]bool{
	"llm": true,
	"mcp": true,
}

// swarmInvoker runs an agent's nested sub-plan as an isolated execution with
// its own store, seeded from the step inputs.
type swarmInvoker struct {
	exec *Executor
}

func (s *swarmInvoker) Invoke(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	if req.Agent.Sub == nil {
		return invoke.Response{}, fmt.Errorf("agent %q has no nested swarm", req.Agent.Name)
	}
	res := s.exec.Execute(ctx, req.Agent.Sub, req.Inputs)
	if !res.Success {
		return invoke.Response{}, fmt.Errorf("nested swarm %q failed: %w", req.Agent.Sub.Name, res.Err)
	}
	return invoke.Response{Output: res.Outputs}, nil
}

// toolInvoker calls every tool named in the agent's capability tags and
// returns a map of tag to tool result. Tags naming built-in mechanisms are
// ignored. An unregistered or failing tool yields an error entry rather than
// failing the whole step.
type toolInvoker struct {
	tools  *tool.Registry
	logger logging.Logger
}

func (t *toolInvoker) Invoke(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	results := make(map[string]any)
	for _, tag := range req.Agent.Capabilities {
		if reservedTags[tag] {
			continue
		}
		tl, ok := t.tools.Get(tag)
		if !ok {
			t.logger.Warn("tool not registered", "agent", req.Agent.Name, "tool", tag)
			results[tag] = map[string]any{"error": "tool not available"}
			continue
		}
		out, err := tl.Call(ctx, req.Inputs)
		if err != nil {
			results[tag] = map[string]any{"error": err.Error()}
			continue
		}
		results[tag] = out
	}
	return invoke.Response{Output: results}, nil
}

// hybridInvoker combines a model invocation with tool calls for agents whose
// capabilities span both.
type hybridInvoker struct {
	llm   invoke.Invoker
	tools *toolInvoker
}

func (h *hybridInvoker) Invoke(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	llmResp, err := h.llm.Invoke(ctx, req)
	if err != nil {
		return invoke.Response{}, err
	}
	toolResp, err := h.tools.Invoke(ctx, req)
	if err != nil {
		return invoke.Response{}, err
	}
	return invoke.Response{Output: map[string]any{
		"llm": llmResp.Output,
		"mcp": toolResp.Output,
	}}, nil
}

var _ invoke.Invoker = (*swarmInvoker)(nil)
var _ invoke.Invoker = (*toolInvoker)(nil)
var _ invoke.Invoker = (*hybridInvoker)(nil)
