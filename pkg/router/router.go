// Package router implements deterministic candidate ordering, the four
// routing strategies, WAL emission around every agent invocation, and error
// normalization at the agent boundary.
package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/contractengine"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/registry"
	"github.com/Balchandar/intentusnet/pkg/wal"
)

// Router resolves an IntentEnvelope to candidate agents, orders them
// deterministically, and applies the requested strategy.
type Router struct {
	registry           *registry.AgentRegistry
	engine             *contractengine.Engine
	walDir             string
	signer             wal.Signer
	requireSigning     bool
	requireDeterminism bool
	clock              func() time.Time
}

// New constructs a Router. requireDeterminism reflects the active
// compliance.Mode (STANDARD/REGULATED block PARALLEL; DEVELOPMENT permits
// it) and is validated once at startup by pkg/compliance, not per-call.
func New(reg *registry.AgentRegistry, engine *contractengine.Engine, walDir string, signer wal.Signer, requireSigning, requireDeterminism bool) *Router {
	return &Router{
		registry:           reg,
		engine:             engine,
		walDir:             walDir,
		signer:             signer,
		requireSigning:     requireSigning,
		requireDeterminism: requireDeterminism,
		clock:              time.Now,
	}
}

// WithClock overrides the router's time source, for deterministic tests.
func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// SortCandidates exports the deterministic ordering rule for callers outside
// the router that need to know which candidate would be attempted first —
// pkg/runtime's cost estimator, which must pick the same agent the router
// would pick without actually dispatching anything.
func SortCandidates(candidates []contracts.Agent) []contracts.Agent {
	return sortCandidates(candidates)
}

// sortCandidates applies the fixed total order: no-nodeId
// first, then ascending nodePriority, then lexicographic name. The sort is
// stable and depends only on envelope + registry state.
func sortCandidates(candidates []contracts.Agent) []contracts.Agent {
	sorted := make([]contracts.Agent, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Definition(), sorted[j].Definition()
		aHasNode, bHasNode := a.NodeID != "", b.NodeID != ""
		if aHasNode != bHasNode {
			return !aHasNode
		}
		if a.NodePriority != b.NodePriority {
			return a.NodePriority < b.NodePriority
		}
		return a.Name < b.Name
	})
	return sorted
}

func errorResponse(code ierrors.Code, subtype, message string, retryable bool) contracts.AgentResponse {
	details := map[string]any{}
	if subtype != "" {
		details["subtype"] = subtype
	}
	return contracts.AgentResponse{
		Status: contracts.StatusError,
		Error: &contracts.ErrorInfo{
			Code:      string(code),
			Subtype:   subtype,
			Message:   message,
			Retryable: retryable,
			Details:   details,
		},
	}
}

// Route executes env against the registry under executionID, which the
// caller (pkg/runtime) is responsible for generating or resolving via the
// idempotency index before calling Route. env is mutated in place:
// RoutingMetadata.DecisionPath accumulates one entry per attempted agent,
// visible to the caller after Route returns (and persisted in the WAL
// regardless of outcome).
func (r *Router) Route(ctx context.Context, env *contracts.IntentEnvelope, executionID string) (contracts.AgentResponse, error) {
	candidates := r.registry.FindAgentsForIntent(env.Intent)
	if len(candidates) == 0 {
		return errorResponse(ierrors.CodeCapabilityNotFound, "", fmt.Sprintf("no agent registered for intent %s", env.Intent), false), nil
	}
	candidates = sortCandidates(candidates)

	contract := env.Contract
	if contract == nil {
		d := contracts.DefaultContract()
		contract = &d
	}
	if err := contractengine.ValidateContract(*contract, env.SideEffect); err != nil {
		return errorResponse(ierrors.CodeContractViolation, "", err.Error(), false), nil
	}

	if env.Routing.Strategy == contracts.StrategyParallel && r.requireDeterminism {
		return errorResponse(ierrors.CodeDeterminismViolation, "parallel_under_determinism", "PARALLEL is disallowed when requireDeterminism is true", false), nil
	}

	agentNameForEstimate := candidates[0].Definition().Name
	if env.Routing.TargetAgent != "" {
		agentNameForEstimate = env.Routing.TargetAgent
	}
	if err := r.engine.CheckBudget(*env, agentNameForEstimate, *contract); err != nil {
		return errorResponse(ierrors.CodeBudgetExceeded, "", err.Error(), false), nil
	}

	envelopeHash, err := canonicalize.CanonicalHash(env)
	if err != nil {
		return contracts.AgentResponse{}, fmt.Errorf("router: hash envelope: %w", err)
	}

	w, err := wal.NewWriter(r.walDir, executionID, r.signer, r.requireSigning)
	if err != nil {
		return contracts.AgentResponse{}, fmt.Errorf("router: open wal writer: %w", err)
	}
	defer w.Close()

	if _, err := w.ExecutionStarted(envelopeHash, env.Intent.String(), "", r.requireDeterminism); err != nil {
		return contracts.AgentResponse{}, err
	}

	d := &dispatch{
		router:      r,
		w:           w,
		executionID: executionID,
		contract:    *contract,
		env:         env,
	}

	var resp contracts.AgentResponse
	switch env.Routing.Strategy {
	case contracts.StrategyDirect:
		resp, err = d.direct(ctx, candidates)
	case contracts.StrategyFallback:
		resp, err = d.fallback(ctx, candidates)
	case contracts.StrategyBroadcast:
		resp, err = d.broadcast(ctx, candidates)
	case contracts.StrategyParallel:
		resp, err = d.parallel(ctx, candidates)
	default:
		resp = errorResponse(ierrors.CodeRoutingError, "unknown_strategy", "unknown routing strategy: "+string(env.Routing.Strategy), false)
	}
	if err != nil {
		return contracts.AgentResponse{}, err
	}

	if len(d.spans) > 0 {
		if resp.Metadata == nil {
			resp.Metadata = map[string]any{}
		}
		resp.Metadata["invocationSpans"] = d.spans
	}

	responseHash, hashErr := canonicalize.CanonicalHash(resp)
	if hashErr != nil {
		return contracts.AgentResponse{}, fmt.Errorf("router: hash response: %w", hashErr)
	}

	if resp.Status == contracts.StatusSuccess {
		if _, err := w.ExecutionCompleted(responseHash); err != nil {
			return contracts.AgentResponse{}, err
		}
	} else {
		subtype := ""
		if resp.Error != nil {
			subtype = resp.Error.Subtype
		}
		if _, err := w.ExecutionFailed(subtype, errMessage(resp), recoverableOf(resp)); err != nil {
			return contracts.AgentResponse{}, err
		}
	}

	return resp, nil
}

func errMessage(resp contracts.AgentResponse) string {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Message
}

func recoverableOf(resp contracts.AgentResponse) bool {
	if resp.Error == nil {
		return false
	}
	return resp.Error.Retryable
}
