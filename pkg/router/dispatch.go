package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/wal"
)

// dispatch carries the per-Route state the four strategy implementations
// share: the WAL writer, the execution's contract, and the envelope being
// routed. One dispatch is used for exactly one Route call.
type dispatch struct {
	router      *Router
	w           *wal.Writer
	executionID string
	contract    contracts.ExecutionContract
	env         *contracts.IntentEnvelope

	spansMu sync.Mutex
	spans   []contracts.InvocationSpan

	decisionMu sync.Mutex
}

func (d *dispatch) addSpan(span contracts.InvocationSpan) {
	d.spansMu.Lock()
	defer d.spansMu.Unlock()
	d.spans = append(d.spans, span)
}

// appendDecision records name on the envelope's decision path. PARALLEL
// dispatches one goroutine per candidate, all sharing d.env, so this must be
// serialized the same way spans are.
func (d *dispatch) appendDecision(name string) {
	d.decisionMu.Lock()
	defer d.decisionMu.Unlock()
	d.env.RoutingMetadata.AppendDecision(name)
}

func stepID(executionID, agentName string) string {
	return executionID + ":" + agentName
}

// invoke runs one candidate under the contract engine's exactly-once and
// timeout enforcement, recovering from a panicking Agent and normalizing it
// to INTERNAL_AGENT_ERROR rather than letting it cross the boundary.
func (d *dispatch) invoke(ctx context.Context, agent contracts.Agent) (resp contracts.AgentResponse, err error) {
	name := agent.Definition().Name
	sid := stepID(d.executionID, name)

	if enforceErr := d.router.engine.EnforceExactlyOnce(d.contract, sid); enforceErr != nil {
		if _, walErr := d.w.ContractViolated(sid, "exactly_once_violation", enforceErr.Error()); walErr != nil {
			return contracts.AgentResponse{}, walErr
		}
		return errorResponse(ierrors.CodeContractViolation, "exactly_once_violation", enforceErr.Error(), false), nil
	}

	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(ierrors.CodeInternalAgentError, "panic", fmt.Sprintf("agent %s panicked: %v", name, r), false)
			err = nil
		}
	}()

	resp, invokeErr := d.router.engine.WithTimeout(ctx, d.contract, func(ctx context.Context) (contracts.AgentResponse, error) {
		return agent.Invoke(ctx, *d.env)
	})
	if invokeErr != nil {
		if ie, ok := ierrors.As(invokeErr); ok && ie.Code == ierrors.CodeTimeout {
			if _, walErr := d.w.ContractViolated(sid, "timeout_ms", ie.Message); walErr != nil {
				return contracts.AgentResponse{}, walErr
			}
			return errorResponse(ierrors.CodeTimeout, "timeout_ms", ie.Message, false), nil
		}
		return errorResponse(ierrors.CodeInternalAgentError, "", invokeErr.Error(), false), nil
	}

	if resp.Status == contracts.StatusSuccess && d.contract.ExactlyOnce {
		d.router.engine.MarkStepSeen(sid)
	}
	return resp, nil
}

func hashPayload(v any) string {
	h, err := canonicalize.CanonicalHash(v)
	if err != nil {
		return ""
	}
	return h
}

// recordStep writes step.started, invokes the candidate, then writes
// step.completed or step.failed, appending the agent to the decision path
// regardless of outcome.
func (d *dispatch) recordStep(ctx context.Context, agent contracts.Agent) (contracts.AgentResponse, error) {
	name := agent.Definition().Name
	sid := stepID(d.executionID, name)
	d.appendDecision(name)

	inputHash := hashPayload(d.env.Payload)
	contractSnapshot := map[string]any{
		"exactlyOnce":  d.contract.ExactlyOnce,
		"noRetry":      d.contract.NoRetry,
		"maxRetries":   d.contract.MaxRetries,
		"timeoutMs":    d.contract.TimeoutMs,
		"maxCostUnits": d.contract.MaxCostUnits,
	}
	if _, err := d.w.StepStarted(sid, name, string(d.env.SideEffect), contractSnapshot, inputHash); err != nil {
		return contracts.AgentResponse{}, err
	}

	startedAt := d.router.clock()
	resp, err := d.invoke(ctx, agent)
	if err != nil {
		return contracts.AgentResponse{}, err
	}
	d.addSpan(contracts.InvocationSpan{
		Agent:      name,
		Intent:     d.env.Intent.String(),
		StartedAt:  startedAt.UTC().Format(time.RFC3339Nano),
		DurationMs: d.router.clock().Sub(startedAt).Milliseconds(),
		Status:     resp.Status,
	})

	if resp.Status == contracts.StatusSuccess {
		if _, err := d.w.StepCompleted(sid, hashPayload(resp.Payload), true); err != nil {
			return contracts.AgentResponse{}, err
		}
	} else {
		subtype, reason, retryable := "", "", false
		if resp.Error != nil {
			subtype, reason, retryable = resp.Error.Subtype, resp.Error.Message, resp.Error.Retryable
		}
		if _, err := d.w.StepFailed(sid, subtype, reason, retryable); err != nil {
			return contracts.AgentResponse{}, err
		}
	}
	return resp, nil
}

// direct invokes exactly one candidate: the envelope's targetAgent if set,
// else the first candidate in deterministic order. There is no fallback.
func (d *dispatch) direct(ctx context.Context, candidates []contracts.Agent) (contracts.AgentResponse, error) {
	target := d.env.Routing.TargetAgent
	agent := candidates[0]
	if target != "" {
		found := false
		for _, c := range candidates {
			if c.Definition().Name == target {
				agent = c
				found = true
				break
			}
		}
		if !found {
			return errorResponse(ierrors.CodeRoutingError, "target_not_registered", "target agent not registered: "+target, false), nil
		}
	}
	return d.recordStep(ctx, agent)
}

// fallback tries candidates sequentially, stopping at the first success.
// Once an IRREVERSIBLE attempt has started, no further candidate may be
// tried for this step — a failure there is terminal.
func (d *dispatch) fallback(ctx context.Context, candidates []contracts.Agent) (contracts.AgentResponse, error) {
	var last contracts.AgentResponse
	limit := len(candidates)
	if d.env.SideEffect == contracts.SideEffectIrreversible {
		limit = 1
	}

	for i := 0; i < limit; i++ {
		agent := candidates[i]
		resp, err := d.recordStep(ctx, agent)
		if err != nil {
			return contracts.AgentResponse{}, err
		}
		if resp.Status == contracts.StatusSuccess {
			return resp, nil
		}
		last = resp

		if d.env.SideEffect == contracts.SideEffectIrreversible {
			return errorResponse(ierrors.CodeIrreversibleStepFailed, "", "irreversible step failed, no further candidate may be tried", false), nil
		}

		if i+1 < limit {
			next := candidates[i+1]
			if _, err := d.w.FallbackTriggered(agent.Definition().Name, next.Definition().Name, errMessage(resp)); err != nil {
				return contracts.AgentResponse{}, err
			}
		}
	}

	if _, err := d.w.Append(wal.EntryFallbackExhausted, map[string]any{
		"executionId": d.executionID,
		"attempted":   d.env.RoutingMetadata.DecisionPath,
	}); err != nil {
		return contracts.AgentResponse{}, err
	}
	return last, nil
}

// broadcast runs every candidate sequentially in order, recording every
// step, and returns the last successful response — not an aggregate. If
// side-effect is IRREVERSIBLE, only the first candidate is attempted.
func (d *dispatch) broadcast(ctx context.Context, candidates []contracts.Agent) (contracts.AgentResponse, error) {
	limit := len(candidates)
	if d.env.SideEffect == contracts.SideEffectIrreversible {
		limit = 1
	}

	var lastSuccess contracts.AgentResponse
	var lastAny contracts.AgentResponse
	sawSuccess := false

	for i := 0; i < limit; i++ {
		resp, err := d.recordStep(ctx, candidates[i])
		if err != nil {
			return contracts.AgentResponse{}, err
		}
		lastAny = resp
		if resp.Status == contracts.StatusSuccess {
			lastSuccess = resp
			sawSuccess = true
		}
	}

	if sawSuccess {
		return lastSuccess, nil
	}
	return lastAny, nil
}

// parallel launches every candidate concurrently in deterministic launch
// order; the first success wins and the rest are discarded (not forcibly
// canceled — best-effort only). Requires
// requireDeterminism=false, enforced by the caller before dispatch.
func (d *dispatch) parallel(ctx context.Context, candidates []contracts.Agent) (contracts.AgentResponse, error) {
	limit := len(candidates)
	if d.env.SideEffect == contracts.SideEffectIrreversible {
		limit = 1
	}

	type outcome struct {
		resp contracts.AgentResponse
		err  error
	}
	results := make(chan outcome, limit)

	for i := 0; i < limit; i++ {
		agent := candidates[i]
		go func() {
			resp, err := d.recordStep(ctx, agent)
			results <- outcome{resp, err}
		}()
	}

	var last contracts.AgentResponse
	var firstErr error
	for i := 0; i < limit; i++ {
		o := <-results
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		if o.resp.Status == contracts.StatusSuccess {
			return o.resp, nil
		}
		last = o.resp
	}
	if firstErr != nil {
		return contracts.AgentResponse{}, firstErr
	}
	return last, nil
}
