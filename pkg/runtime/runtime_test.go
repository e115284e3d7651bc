package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Balchandar/intentusnet/pkg/compliance"
	"github.com/Balchandar/intentusnet/pkg/config"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/registry"
)

func sumIntent() contracts.IntentReference {
	return contracts.IntentReference{Name: "sum", Version: "1.0"}
}

type sumAgent struct{ name string }

func (a sumAgent) Definition() contracts.AgentDefinition {
	return contracts.AgentDefinition{
		Name:         a.name,
		Capabilities: []contracts.Capability{{Intent: sumIntent()}},
	}
}

func (a sumAgent) Invoke(_ context.Context, env contracts.IntentEnvelope) (contracts.AgentResponse, error) {
	aVal, _ := env.Payload["a"].(int)
	bVal, _ := env.Payload["b"].(int)
	return contracts.AgentResponse{Status: contracts.StatusSuccess, Payload: map[string]any{"sum": aVal + bVal}}, nil
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(sumAgent{name: "adder"}))

	cfg := &config.Config{
		Mode:           config.ModeReadWrite,
		BaseDir:        t.TempDir(),
		ComplianceMode: compliance.ModeDevelopment,
	}
	rt, err := New(cfg, Options{Registry: reg})
	require.NoError(t, err)
	return rt
}

func TestRuntime_SubmitAndRetrieve(t *testing.T) {
	rt := newTestRuntime(t)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 2, "b": 3},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyDirect},
	}

	record, err := rt.Submit(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, contracts.StateCompleted, record.State)
	require.Equal(t, 5, record.Response.Payload["sum"])
	require.NotEmpty(t, record.Fingerprint)

	fetched, err := rt.Retrieve(record.ExecutionID)
	require.NoError(t, err)
	require.Equal(t, record.RecordHash, fetched.RecordHash)
}

func TestRuntime_SubmitIsIdempotentOnRepeatedKey(t *testing.T) {
	rt := newTestRuntime(t)

	base := contracts.IntentEnvelope{
		Version:        "1.0",
		Intent:         sumIntent(),
		Payload:        map[string]any{"a": 2, "b": 3},
		Routing:        contracts.RoutingOptions{Strategy: contracts.StrategyDirect},
		IdempotencyKey: "K1",
	}

	first := base
	first.Metadata.TraceID = "trace-a"
	recordA, err := rt.Submit(context.Background(), first)
	require.NoError(t, err)

	second := base
	second.Metadata.TraceID = "trace-b"
	recordB, err := rt.Submit(context.Background(), second)
	require.NoError(t, err)

	require.Equal(t, recordA.ExecutionID, recordB.ExecutionID)
}

func TestRuntime_EstimatePicksSameCandidateRouteWould(t *testing.T) {
	rt := newTestRuntime(t)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 2, "b": 3},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyDirect},
	}

	est, err := rt.Estimate(env)
	require.NoError(t, err)
	require.Equal(t, "adder", est.AgentName)
	require.True(t, est.WithinBudget)
}

func TestRuntime_EstimateFailsForUnknownIntent(t *testing.T) {
	rt := newTestRuntime(t)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  contracts.IntentReference{Name: "unknown", Version: "1.0"},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyDirect},
	}

	_, err := rt.Estimate(env)
	require.Error(t, err)
}

func TestRuntime_RecoveryScanIsEmptyAfterCleanCompletion(t *testing.T) {
	rt := newTestRuntime(t)

	env := contracts.IntentEnvelope{
		Version: "1.0",
		Intent:  sumIntent(),
		Payload: map[string]any{"a": 1, "b": 1},
		Routing: contracts.RoutingOptions{Strategy: contracts.StrategyDirect},
	}
	_, err := rt.Submit(context.Background(), env)
	require.NoError(t, err)

	findings, err := rt.RecoveryScan()
	require.NoError(t, err)
	require.Empty(t, findings)
}
