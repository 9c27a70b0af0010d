package invoke

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock is a lightweight in-memory Invoker for tests, examples and local
// development. It returns canned outputs per agent name, can be scripted to
// fail a fixed number of times, and records every request it receives.
type Mock struct {
	mu        sync.Mutex
	responses map[string]any
	failures  map[string]*failurePlan
	delays    map[string]time.Duration
	calls     []Request
}

type failurePlan struct {
	remaining int
	err       error
}

// NewMock constructs an empty Mock invoker.
func NewMock() *Mock {
	return &Mock{
		responses: make(map[string]any),
		failures:  make(map[string]*failurePlan),
		delays:    make(map[string]time.Duration),
	}
}

// AddResponse registers a canned output for an agent name. Agents without a
// canned output get a deterministic placeholder string.
func (m *Mock) AddResponse(agent string, output any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[agent] = output
}

// FailTimes scripts the next n invocations of agent to fail with err before
// succeeding again.
func (m *Mock) FailTimes(agent string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[agent] = &failurePlan{remaining: n, err: err}
}

// SetDelay makes invocations of agent block for d (or until the context is
// done). Used to exercise parallel dispatch ordering.
func (m *Mock) SetDelay(agent string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[agent] = d
}

// Calls returns a copy of every request received, in arrival order.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount reports how many times agent was invoked.
func (m *Mock) CallCount(agent string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Agent.Name == agent {
			n++
		}
	}
	return n
}

// Invoke implements Invoker.
func (m *Mock) Invoke(ctx context.Context, req Request) (Response, error) {
	name := req.Agent.Name

	m.mu.Lock()
	m.calls = append(m.calls, req)
	delay := m.delays[name]
	var failErr error
	if plan, ok := m.failures[name]; ok && plan.remaining > 0 {
		plan.remaining--
		failErr = plan.err
	}
	output, canned := m.responses[name]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if failErr != nil {
		return Response{}, failErr
	}
	if !canned {
		output = fmt.Sprintf("mock response from %s", name)
	}
	return Response{Output: output}, nil
}
