// Package contractengine validates execution contracts before a step runs
// and enforces them while it runs: timeout, exactly-once, and pre-execution
// cost budget. Enforcement is fail-closed throughout — any estimator or
// bookkeeping error denies the attempt rather than letting it proceed.
package contractengine

import (
	"context"
	"sync"
	"time"

	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
)

// CostEstimator estimates the cost of invoking an agent for env, in the
// same units as ExecutionContract.MaxCostUnits.
type CostEstimator interface {
	Estimate(env contracts.IntentEnvelope, agentName string) (int64, error)
}

// CostEstimatorFunc adapts a function to CostEstimator.
type CostEstimatorFunc func(env contracts.IntentEnvelope, agentName string) (int64, error)

func (f CostEstimatorFunc) Estimate(env contracts.IntentEnvelope, agentName string) (int64, error) {
	return f(env, agentName)
}

// ZeroCostEstimator always estimates zero cost — the default when no
// estimator is configured, matching DEVELOPMENT-mode behavior where cost
// enforcement is not wired to anything.
var ZeroCostEstimator = CostEstimatorFunc(func(contracts.IntentEnvelope, string) (int64, error) {
	return 0, nil
})

// Engine validates contracts and enforces them at invocation time.
type Engine struct {
	estimator CostEstimator

	mu        sync.Mutex
	completed map[string]bool // stepId -> seen, for exactlyOnce enforcement
}

// New returns an Engine using estimator for pre-execution cost checks. A nil
// estimator falls back to ZeroCostEstimator.
func New(estimator CostEstimator) *Engine {
	if estimator == nil {
		estimator = ZeroCostEstimator
	}
	return &Engine{
		estimator: estimator,
		completed: make(map[string]bool),
	}
}

// ValidateContract checks the contract's static invariants against the
// declared side-effect class, before any WAL entry is written (spec
// invariant: maxRetries>0 with IRREVERSIBLE fails pre-write).
func ValidateContract(c contracts.ExecutionContract, sideEffect contracts.SideEffectClass) error {
	if err := c.Validate(sideEffect); err != nil {
		return ierrors.Wrap(ierrors.CodeContractViolation, "contract validation failed", err)
	}
	return nil
}

// CheckBudget estimates the cost of invoking agentName for env and compares
// it against the contract's MaxCostUnits. Must run before execution.started
// is written. An estimation error fails closed as BUDGET_EXCEEDED.
func (e *Engine) CheckBudget(env contracts.IntentEnvelope, agentName string, c contracts.ExecutionContract) error {
	estimated, err := e.estimator.Estimate(env, agentName)
	if err != nil {
		return ierrors.Wrap(ierrors.CodeBudgetExceeded, "cost estimation failed", err)
	}
	if estimated > c.MaxCostUnits {
		return ierrors.New(ierrors.CodeBudgetExceeded, "estimated cost exceeds maxCostUnits").
			WithDetails(map[string]any{"estimatedCost": estimated, "maxCostUnits": c.MaxCostUnits})
	}
	return nil
}

// MarkStepSeen records stepId as completed for exactlyOnce enforcement, and
// reports whether it had already been seen (a re-attempt).
func (e *Engine) MarkStepSeen(stepID string) (alreadySeen bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completed[stepID] {
		return true
	}
	e.completed[stepID] = true
	return false
}

// RestoreSeenSteps seeds the exactlyOnce set from WAL-recovered step.completed
// entries, so a restarted process re-enforces exactlyOnce across a crash.
func (e *Engine) RestoreSeenSteps(stepIDs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range stepIDs {
		e.completed[id] = true
	}
}

// EnforceExactlyOnce returns a CONTRACT_VIOLATION if the contract requires
// exactlyOnce and stepID was already completed.
func (e *Engine) EnforceExactlyOnce(c contracts.ExecutionContract, stepID string) error {
	if !c.ExactlyOnce {
		return nil
	}
	e.mu.Lock()
	seen := e.completed[stepID]
	e.mu.Unlock()
	if seen {
		return ierrors.New(ierrors.CodeContractViolation, "step already completed under exactlyOnce contract").
			WithDetails(map[string]any{"stepId": stepID})
	}
	return nil
}

// Invocation is the signature of an agent call the engine wraps for timeout
// enforcement.
type Invocation func(ctx context.Context) (contracts.AgentResponse, error)

// WithTimeout runs invoke under a deadline derived from c.TimeoutMs. If the
// deadline elapses first, it returns a TIMEOUT error immediately — the
// underlying invocation keeps running in its own goroutine (best-effort
// cancellation only: a deadline watcher, not guaranteed preemption of the
// agent).
func (e *Engine) WithTimeout(parent context.Context, c contracts.ExecutionContract, invoke Invocation) (contracts.AgentResponse, error) {
	ctx, cancel := context.WithTimeout(parent, time.Duration(c.TimeoutMs)*time.Millisecond)
	defer cancel()

	type result struct {
		resp contracts.AgentResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := invoke(ctx)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return contracts.AgentResponse{}, ierrors.New(ierrors.CodeTimeout, "step exceeded timeoutMs").
			WithDetails(map[string]any{"timeoutMs": c.TimeoutMs})
	}
}
