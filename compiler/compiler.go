// Package compiler turns a parsed swarm definition into a validated execution
// plan. Compilation runs four passes: agent name resolution, configuration
// default application, data-flow derivation and structural validation. No
// partial plan is ever returned on failure.
package compiler

import (
	"fmt"
	"time"

	"github.com/mlang-ai/mlang/ast"
)

// Configuration defaults applied when the source leaves a key unset.
const (
	DefaultTemperature = 0.7
	DefaultTimeout     = 300 * time.Second
	DefaultRetry       = 0
)

// SemanticError reports a validation failure, naming the construct and the
// rule it violated.
type SemanticError struct {
	Construct string
	Rule      string
}

// Error implements the error interface.
func (e *SemanticError) Error() string {
	return fmt.Sprintf("%s: %s", e.Construct, e.Rule)
}

// Transforms is the closed set of named output transforms the executor
// implements. The compiler rejects references to anything else.
var Transforms = map[string]bool{
	"identity":     true,
	"to_string":    true,
	"to_json":      true,
	"extract_text": true,
}

// Filters is the closed set of named output filters.
var Filters = map[string]bool{
	"non_empty": true,
	"unique":    true,
}

// Compile validates the swarm definition and produces its execution plan.
func Compile(sw *ast.Swarm) (*Plan, error) {
	return compile(sw, 0)
}

func compile(sw *ast.Swarm, depth int) (*Plan, error) {
	plan := &Plan{Name: sw.Name, Agents: make(map[string]*ResolvedAgent, len(sw.Agents))}

	for _, agent := range sw.Agents {
		if _, exists := plan.Agents[agent.Name]; exists {
			return nil, &SemanticError{
				Construct: "agent " + agent.Name,
				Rule:      "duplicate agent name within swarm " + sw.Name,
			}
		}
		resolved, err := resolveAgent(agent, depth)
		if err != nil {
			return nil, err
		}
		plan.Agents[agent.Name] = resolved
	}

	for i, wf := range sw.Workflows {
		compiled, err := compileWorkflow(plan, wf, i)
		if err != nil {
			return nil, err
		}
		plan.Workflows = append(plan.Workflows, compiled)
	}
	return plan, nil
}

// resolveAgent applies configuration defaults and decides the capability kind
// once, so the executor never branches on raw capability strings.
func resolveAgent(agent *ast.Agent, depth int) (*ResolvedAgent, error) {
	construct := "agent " + agent.Name

	cfg := Config{
		Model:       agent.Config.Model,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
		Retry:       DefaultRetry,
		Tools:       agent.Config.Tools,
		Extra:       agent.Config.Extra,
	}
	if agent.Config.HasTemperature {
		if agent.Config.Temperature < 0 || agent.Config.Temperature > 2 {
			return nil, &SemanticError{Construct: construct, Rule: "temperature must be in [0, 2]"}
		}
		cfg.Temperature = agent.Config.Temperature
	}
	if agent.Config.HasTimeout {
		if agent.Config.Timeout <= 0 {
			return nil, &SemanticError{Construct: construct, Rule: "timeout must be a positive number of seconds"}
		}
		cfg.Timeout = time.Duration(agent.Config.Timeout) * time.Second
	}
	if agent.Config.HasRetry {
		if agent.Config.Retry < 0 {
			return nil, &SemanticError{Construct: construct, Rule: "retry must not be negative"}
		}
		cfg.Retry = agent.Config.Retry
	}

	kind := capabilityKind(agent)
	if hasCapability(agent, "llm") && cfg.Model == "" {
		return nil, &SemanticError{Construct: construct, Rule: "llm-capable agents require an explicit model"}
	}

	resolved := &ResolvedAgent{
		Name:         agent.Name,
		Role:         agent.Role,
		Capabilities: agent.Capabilities,
		Kind:         kind,
		Inputs:       agent.Inputs,
		Outputs:      agent.Outputs,
		Config:       cfg,
	}
	if agent.Body != nil {
		sub, err := compile(agent.Body, depth+1)
		if err != nil {
			return nil, fmt.Errorf("nested swarm of %s: %w", construct, err)
		}
		resolved.Sub = sub
	}
	return resolved, nil
}

// capabilityKind maps the open capability tag set onto the closed invocation
// variant set: a nested body wins, then llm, then mcp, then hybrid.
func capabilityKind(agent *ast.Agent) CapabilityKind {
	switch {
	case agent.Body != nil:
		return KindSwarm
	case hasCapability(agent, "llm"):
		return KindLLM
	case hasCapability(agent, "mcp"):
		return KindMCP
	default:
		return KindHybrid
	}
}

func hasCapability(agent *ast.Agent, tag string) bool {
	for _, c := range agent.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

func compileWorkflow(plan *Plan, wf *ast.Workflow, index int) (*Workflow, error) {
	construct := fmt.Sprintf("workflow %d (%s)", index, wf.Kind)

	compiled := &Workflow{
		Kind:          wf.Kind,
		Conditions:    wf.Conditions,
		MaxIterations: wf.MaxIterations,
		ContinueVar:   wf.ContinueVar,
	}

	// Pass 1: resolve agent references; reject unknown transform and filter
	// names so every plan step is directly interpretable.
	for i, step := range wf.Steps {
		agent, ok := plan.Agents[step.Agent]
		if !ok {
			return nil, &SemanticError{Construct: construct, Rule: "unknown agent " + step.Agent}
		}
		if step.Transform != "" && !Transforms[step.Transform] {
			return nil, &SemanticError{Construct: construct, Rule: fmt.Sprintf("unknown transform %q in step %s", step.Transform, step.Agent)}
		}
		if step.Filter != "" && !Filters[step.Filter] {
			return nil, &SemanticError{Construct: construct, Rule: fmt.Sprintf("unknown filter %q in step %s", step.Filter, step.Agent)}
		}
		switch step.OnError {
		case ast.ErrorNone, ast.ErrorRetry, ast.ErrorSkip, ast.ErrorAbort:
		default:
			return nil, &SemanticError{Construct: construct, Rule: fmt.Sprintf("unknown error policy %q in step %s", step.OnError, step.Agent)}
		}
		compiled.Steps = append(compiled.Steps, &Step{
			Index:     i,
			Agent:     agent,
			Inputs:    step.Inputs,
			Outputs:   step.Outputs,
			Transform: step.Transform,
			Filter:    step.Filter,
			OnError:   step.OnError,
		})
	}

	// Pass 2: single writer per variable name. This is what lets the
	// executor's variable store get away with one coarse lock.
	producers := make(map[string]int)
	for _, step := range compiled.Steps {
		for _, out := range step.Outputs {
			if prev, dup := producers[out]; dup {
				return nil, &SemanticError{
					Construct: construct,
					Rule: fmt.Sprintf("output %q written by both step %s and step %s",
						out, compiled.Steps[prev].Agent.Name, step.Agent.Name),
				}
			}
			producers[out] = step.Index
		}
	}

	// Pass 3: data-flow derivation. Names without an intra-workflow producer
	// are assumed to be seeded by the caller; their absence is a runtime
	// error, not a compile error.
	for _, step := range compiled.Steps {
		seen := make(map[int]bool)
		for _, in := range step.Inputs {
			producer, ok := producers[in]
			if !ok || producer == step.Index || seen[producer] {
				continue
			}
			if wf.Kind == ast.Sequential && producer > step.Index {
				return nil, &SemanticError{
					Construct: construct,
					Rule: fmt.Sprintf("step %s consumes %q before step %s produces it",
						step.Agent.Name, in, compiled.Steps[producer].Agent.Name),
				}
			}
			seen[producer] = true
			step.DependsOn = append(step.DependsOn, producer)
		}
	}
	if wf.Kind == ast.Parallel {
		if err := checkAcyclic(compiled, construct); err != nil {
			return nil, err
		}
	}

	// Pass 4: structural validation of kind-specific data.
	switch wf.Kind {
	case ast.Conditional:
		if len(wf.Conditions) != len(wf.Steps) {
			return nil, &SemanticError{
				Construct: construct,
				Rule: fmt.Sprintf("conditional workflows need exactly one condition per step (%d conditions for %d steps)",
					len(wf.Conditions), len(wf.Steps)),
			}
		}
		for i, cond := range wf.Conditions {
			if cond == "" {
				return nil, &SemanticError{Construct: construct, Rule: fmt.Sprintf("condition %d is empty", i)}
			}
		}
	case ast.Loop:
		if wf.MaxIterations <= 0 {
			return nil, &SemanticError{Construct: construct, Rule: "loop bound must be a positive integer"}
		}
	}
	return compiled, nil
}

// checkAcyclic rejects parallel workflows whose dependency edges form a
// cycle, which would deadlock the dispatch. Plain depth-first search with a
// three-color marking.
func checkAcyclic(wf *Workflow, construct string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(wf.Steps))
	var visit func(int) bool
	visit = func(i int) bool {
		color[i] = gray
		for _, dep := range wf.Steps[i].DependsOn {
			switch color[dep] {
			case gray:
				return false
			case white:
				if !visit(dep) {
					return false
				}
			}
		}
		color[i] = black
		return true
	}
	for i := range wf.Steps {
		if color[i] == white && !visit(i) {
			return &SemanticError{Construct: construct, Rule: "circular data-flow dependency between parallel steps"}
		}
	}
	return nil
}
