package compiler

import (
	"time"

	"github.com/mlang-ai/mlang/ast"
)

// CapabilityKind is the invocation variant chosen for an agent at compile
// time. The executor dispatches on this closed set instead of re-inspecting
// capability strings per call.
type CapabilityKind string

const (
	// KindLLM routes invocations through the runtime's model invoker.
	KindLLM CapabilityKind = "llm"
	// KindMCP fans out over the agent's tool capabilities via the registry.
	KindMCP CapabilityKind = "mcp"
	// KindHybrid combines the llm and mcp variants and merges their results.
	KindHybrid CapabilityKind = "hybrid"
	// KindSwarm executes the agent's nested swarm body as a sub-plan.
	KindSwarm CapabilityKind = "swarm"
)

// Plan is the compiler's validated, resolved representation of a swarm,
// ready for interpretation. Plans are immutable once compiled.
type Plan struct {
	Name      string
	Agents    map[string]*ResolvedAgent
	Workflows []*Workflow
}

// ResolvedAgent is an agent definition with its capability kind decided and
// all configuration defaults merged in.
type ResolvedAgent struct {
	Name         string
	Role         string
	Capabilities []string
	Kind         CapabilityKind
	Inputs       []string
	Outputs      []string
	Config       Config
	Sub          *Plan // non-nil only for KindSwarm
}

// Config is the fully-defaulted agent configuration.
type Config struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
	Retry       int
	Tools       []string
	Extra       map[string]string
}

// Workflow is a compiled workflow whose steps are resolved against the
// swarm's agents and annotated with data-flow dependencies.
type Workflow struct {
	Kind          ast.WorkflowKind
	Steps         []*Step
	Conditions    []string
	MaxIterations int
	ContinueVar   string
}

// Step is a resolved step call. DependsOn lists the indexes of sibling steps
// whose outputs this step consumes, derived from shared variable names.
type Step struct {
	Index     int
	Agent     *ResolvedAgent
	Inputs    []string
	Outputs   []string
	Transform string
	Filter    string
	OnError   ast.ErrorPolicy
	DependsOn []int
}
