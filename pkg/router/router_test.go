package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Balchandar/intentusnet/pkg/contractengine"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/registry"
	"github.com/Balchandar/intentusnet/pkg/wal"
	"github.com/stretchr/testify/require"
)

func sumIntent() contracts.IntentReference {
	return contracts.IntentReference{Name: "sum", Version: "1.0"}
}

type scriptedAgent struct {
	name    string
	succeed bool
}

func (a scriptedAgent) Definition() contracts.AgentDefinition {
	return contracts.AgentDefinition{
		Name:         a.name,
		Capabilities: []contracts.Capability{{Intent: sumIntent()}},
	}
}

func (a scriptedAgent) Invoke(ctx context.Context, env contracts.IntentEnvelope) (contracts.AgentResponse, error) {
	if !a.succeed {
		return contracts.AgentResponse{
			Status: contracts.StatusError,
			Error:  &contracts.ErrorInfo{Code: string("AGENT_ERROR"), Message: a.name + " failed"},
		}, nil
	}
	aVal, _ := env.Payload["a"].(int)
	bVal, _ := env.Payload["b"].(int)
	return contracts.AgentResponse{
		Status:  contracts.StatusSuccess,
		Payload: map[string]any{"sum": aVal + bVal},
	}, nil
}

type slowAgent struct {
	name  string
	delay time.Duration
}

func (a slowAgent) Definition() contracts.AgentDefinition {
	return contracts.AgentDefinition{
		Name:         a.name,
		Capabilities: []contracts.Capability{{Intent: sumIntent()}},
	}
}

func (a slowAgent) Invoke(ctx context.Context, env contracts.IntentEnvelope) (contracts.AgentResponse, error) {
	select {
	case <-time.After(a.delay):
		return contracts.AgentResponse{Status: contracts.StatusSuccess, Payload: map[string]any{"sum": 0}}, nil
	case <-ctx.Done():
		return contracts.AgentResponse{}, ctx.Err()
	}
}

func newTestRouter(t *testing.T, reg *registry.AgentRegistry, requireDeterminism bool) (*Router, string) {
	t.Helper()
	dir := t.TempDir()
	eng := contractengine.New(nil)
	return New(reg, eng, dir, nil, false, requireDeterminism), dir
}

func TestRoute_FallbackSucceedsOnSecondCandidate(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(scriptedAgent{name: "A", succeed: false}))
	require.NoError(t, reg.Register(scriptedAgent{name: "B", succeed: true}))

	r, dir := newTestRouter(t, reg, false)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 17, "b": 25},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyFallback},
	}

	resp, err := r.Route(context.Background(), &env, "exec-1")
	require.NoError(t, err)
	require.Equal(t, contracts.StatusSuccess, resp.Status)
	require.Equal(t, 42, resp.Payload["sum"])
	require.Equal(t, []string{"A", "B"}, env.RoutingMetadata.DecisionPath)

	entries, err := wal.ReadAll(filepath.Join(dir, "exec-1.wal"))
	require.NoError(t, err)

	var types []wal.EntryType
	for _, e := range entries {
		types = append(types, e.Type)
	}
	require.Equal(t, []wal.EntryType{
		wal.EntryExecutionStarted,
		wal.EntryStepStarted,
		wal.EntryStepFailed,
		wal.EntryFallbackTriggered,
		wal.EntryStepStarted,
		wal.EntryStepCompleted,
		wal.EntryExecutionCompleted,
	}, types)
}

func TestRoute_DirectWithMissingTargetIsRoutingError(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(scriptedAgent{name: "A", succeed: true}))

	r, dir := newTestRouter(t, reg, false)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 1, "b": 2},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyDirect, TargetAgent: "Z"},
	}

	resp, err := r.Route(context.Background(), &env, "exec-2")
	require.NoError(t, err)
	require.Equal(t, contracts.StatusError, resp.Status)
	require.Equal(t, "ROUTING_ERROR", resp.Error.Code)
	require.Equal(t, "target_not_registered", resp.Error.Subtype)

	entries, err := wal.ReadAll(filepath.Join(dir, "exec-2.wal"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, wal.EntryExecutionStarted, entries[0].Type)
	require.Equal(t, wal.EntryExecutionFailed, entries[1].Type)
}

func TestRoute_CapabilityNotFoundWritesNoWAL(t *testing.T) {
	reg := registry.New()
	r, dir := newTestRouter(t, reg, false)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyDirect},
	}

	resp, err := r.Route(context.Background(), &env, "exec-3")
	require.NoError(t, err)
	require.Equal(t, "CAPABILITY_NOT_FOUND", resp.Error.Code)

	_, statErr := os.Stat(filepath.Join(dir, "exec-3.wal"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRoute_ParallelRejectedUnderDeterminismWritesNoWAL(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(scriptedAgent{name: "A", succeed: true}))

	r, dir := newTestRouter(t, reg, true)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 1, "b": 2},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyParallel},
	}

	resp, err := r.Route(context.Background(), &env, "exec-4")
	require.NoError(t, err)
	require.Equal(t, "DETERMINISM_VIOLATION", resp.Error.Code)

	_, statErr := os.Stat(filepath.Join(dir, "exec-4.wal"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRoute_BroadcastReturnsLastSuccess(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(scriptedAgent{name: "A", succeed: true}))
	require.NoError(t, reg.Register(scriptedAgent{name: "B", succeed: true}))

	r, _ := newTestRouter(t, reg, false)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 10, "b": 5},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyBroadcast},
	}

	resp, err := r.Route(context.Background(), &env, "exec-5")
	require.NoError(t, err)
	require.Equal(t, contracts.StatusSuccess, resp.Status)
	require.Equal(t, []string{"A", "B"}, env.RoutingMetadata.DecisionPath)
}

func TestRoute_TimeoutWritesContractViolatedBeforeStepFailed(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(slowAgent{name: "A", delay: 200 * time.Millisecond}))

	r, dir := newTestRouter(t, reg, false)

	contract := contracts.DefaultContract()
	contract.TimeoutMs = 10
	env := contracts.IntentEnvelope{
		Version:  "1.0",
		Intent:   sumIntent(),
		Payload:  map[string]any{"a": 1, "b": 2},
		Contract: &contract,
		Routing:  contracts.RoutingOptions{Strategy: contracts.StrategyDirect},
	}

	resp, err := r.Route(context.Background(), &env, "exec-6")
	require.NoError(t, err)
	require.Equal(t, contracts.StatusError, resp.Status)
	require.Equal(t, "timeout_ms", resp.Error.Subtype)

	entries, err := wal.ReadAll(filepath.Join(dir, "exec-6.wal"))
	require.NoError(t, err)

	var types []wal.EntryType
	for _, e := range entries {
		types = append(types, e.Type)
	}
	require.Equal(t, []wal.EntryType{
		wal.EntryExecutionStarted,
		wal.EntryStepStarted,
		wal.EntryContractViolated,
		wal.EntryStepFailed,
		wal.EntryExecutionFailed,
	}, types)

	violated := entries[2]
	require.Equal(t, "timeout_ms", violated.Payload["rule"])
}

func TestRoute_ParallelDoesNotRaceDecisionPath(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(scriptedAgent{name: "A", succeed: false}))
	require.NoError(t, reg.Register(scriptedAgent{name: "B", succeed: false}))
	require.NoError(t, reg.Register(scriptedAgent{name: "C", succeed: true}))

	r, _ := newTestRouter(t, reg, false)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 3, "b": 4},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyParallel},
	}

	resp, err := r.Route(context.Background(), &env, "exec-7")
	require.NoError(t, err)
	require.Equal(t, contracts.StatusSuccess, resp.Status)
	require.Len(t, env.RoutingMetadata.DecisionPath, 3)
}
