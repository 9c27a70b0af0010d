// Package ast defines the abstract syntax tree produced by parsing M Language
// source. Nodes are immutable once built; the compiler reads them but never
// mutates them.
package ast

import "github.com/mlang-ai/mlang/lexer"

// WorkflowKind selects the execution strategy of a workflow.
type WorkflowKind string

const (
	// Sequential runs step calls strictly in declared order.
	Sequential WorkflowKind = "sequential"
	// Parallel dispatches step calls concurrently, honoring data dependencies.
	Parallel WorkflowKind = "parallel"
	// Conditional runs the single step paired with the first true condition.
	Conditional WorkflowKind = "conditional"
	// Loop re-executes the step sequence up to a declared bound.
	Loop WorkflowKind = "loop"
)

// ErrorPolicy governs how a step call reacts to an invocation failure.
type ErrorPolicy string

const (
	// ErrorNone means no policy was declared; failures abort the plan.
	ErrorNone ErrorPolicy = ""
	// ErrorRetry re-invokes the agent up to its configured retry count.
	ErrorRetry ErrorPolicy = "retry"
	// ErrorSkip leaves the step's outputs unset and continues the workflow.
	ErrorSkip ErrorPolicy = "skip"
	// ErrorAbort stops all further scheduling in the current plan.
	ErrorAbort ErrorPolicy = "abort"
)

// Swarm is a named collection of agents and workflows forming one executable
// unit. It owns its children exclusively.
type Swarm struct {
	Name      string
	Agents    []*Agent
	Workflows []*Workflow
	Pos       lexer.Position
}

// Agent declares a named, configured capability with its input and output
// variable names. An agent may own a nested Swarm as its body.
type Agent struct {
	Name         string
	Role         string
	Capabilities []string
	Inputs       []string
	Outputs      []string
	Config       Config
	Body         *Swarm
	Pos          lexer.Position
}

// Config holds the recognized agent configuration keys as typed values plus
// an open side-mapping for unrecognized keys, preserved as opaque strings and
// never silently dropped. The Has* flags distinguish an explicit zero from an
// unset key so the compiler can apply defaults.
type Config struct {
	Model          string
	Temperature    float64
	HasTemperature bool
	Timeout        int // seconds
	HasTimeout     bool
	Retry          int
	HasRetry       bool
	Tools          []string
	Extra          map[string]string
}

// Workflow is an ordered composition of step calls under one execution
// strategy. Conditions are populated only for conditional workflows;
// MaxIterations and ContinueVar only for loops.
type Workflow struct {
	Kind          WorkflowKind
	Steps         []*Step
	Conditions    []string
	MaxIterations int
	ContinueVar   string
	Pos           lexer.Position
}

// Step is one invocation of an agent within a workflow, with input/output
// bindings and optional transform, filter and error policy.
type Step struct {
	Agent     string
	Inputs    []string
	Outputs   []string
	Transform string
	Filter    string
	OnError   ErrorPolicy
	Pos       lexer.Position
}
