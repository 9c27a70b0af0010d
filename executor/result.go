package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/mlang-ai/mlang/internal/util"
)

// FailureKind categorizes a step-scoped runtime failure.
type FailureKind string

const (
	// FailTimeout marks an invocation that exceeded the agent's timeout.
	FailTimeout FailureKind = "timeout"
	// FailInvoker marks an error returned by the agent invoker itself.
	FailInvoker FailureKind = "invoker"
	// FailMissingVariable marks a required input absent from the store.
	FailMissingVariable FailureKind = "missing_variable"
)

// RuntimeError is a step-scoped execution failure, routed through the step's
// error policy.
type RuntimeError struct {
	Kind FailureKind
	Step string
	Err  error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %s: %s: %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("step %s: %s", e.Step, e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RuntimeError) Unwrap() error { return e.Err }

// StepResult records one step execution (or its skip) within a run.
type StepResult struct {
	Agent     string
	Iteration int // 1-based for loop workflows, 0 otherwise
	Success   bool
	Skipped   bool // conditional branch not taken
	Discarded bool // completed after an abort; outputs were not applied
	Attempts  int
	Output    any
	Outputs   map[string]any
	Err       error
	Duration  time.Duration
}

// Result is the structured outcome of one swarm execution. Execute always
// returns a Result, even on total failure; Err then carries the first fatal
// error encountered.
type Result struct {
	ID      string
	Swarm   string
	Success bool
	Steps   []*StepResult
	Outputs map[string]any
	// Iterations holds the completed iteration count of each loop workflow,
	// in execution order.
	Iterations []int
	Err        error
	StartedAt  time.Time
	Duration   time.Duration

	mu sync.Mutex
}

func newResult(swarm string) *Result {
	return &Result{
		ID:        util.NewID(),
		Swarm:     swarm,
		Success:   true,
		StartedAt: time.Now(),
	}
}

// addStep appends a step record; safe to call from parallel branches.
func (r *Result) addStep(sr *StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, sr)
}

// addIterations records a loop workflow's completed iteration count.
func (r *Result) addIterations(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Iterations = append(r.Iterations, n)
}

// fail marks the run failed, keeping the first fatal error.
func (r *Result) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Success = false
	if r.Err == nil {
		r.Err = err
	}
}

func (r *Result) finish(store *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outputs = store.Snapshot()
	r.Duration = time.Since(r.StartedAt)
}

// StepsFor returns the recorded results for the named agent, in run order.
func (r *Result) StepsFor(agent string) []*StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*StepResult
	for _, sr := range r.Steps {
		if sr.Agent == agent {
			out = append(out, sr)
		}
	}
	return out
}
