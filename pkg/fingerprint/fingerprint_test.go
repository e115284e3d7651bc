package fingerprint

import (
	"testing"

	"github.com/Balchandar/intentusnet/pkg/wal"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []wal.Entry {
	return []wal.Entry{
		{Type: wal.EntryExecutionStarted, Payload: map[string]any{}},
		{Type: wal.EntryStepStarted, Payload: map[string]any{
			"agentName": "A",
			"inputHash": "hash-in-1",
			"contract":  map[string]any{"timeoutMs": float64(5000)},
		}},
		{Type: wal.EntryStepCompleted, Payload: map[string]any{"outputHash": "hash-out-1"}},
		{Type: wal.EntryExecutionCompleted, Payload: map[string]any{}},
	}
}

func TestCompute_IsDeterministicForSameInput(t *testing.T) {
	in := FromWALEntries("sum@1.0", sampleEntries())
	a, err := Compute(in)
	require.NoError(t, err)
	b, err := Compute(in)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestVerify_PassesWhenAllFingerprintsMatch(t *testing.T) {
	in := FromWALEntries("sum@1.0", sampleEntries())
	h, err := Compute(in)
	require.NoError(t, err)
	require.NoError(t, Verify([]string{h, h, h}))
}

func TestVerify_FailsOnMismatch(t *testing.T) {
	err := Verify([]string{"hash-a", "hash-b"})
	require.Error(t, err)
}

func TestFromWALEntries_CountsRetriesPerAgent(t *testing.T) {
	entries := []wal.Entry{
		{Type: wal.EntryStepStarted, Payload: map[string]any{"agentName": "A"}},
		{Type: wal.EntryStepFailed, Payload: map[string]any{}},
		{Type: wal.EntryStepStarted, Payload: map[string]any{"agentName": "A"}},
		{Type: wal.EntryStepCompleted, Payload: map[string]any{"outputHash": "h"}},
	}
	in := FromWALEntries("sum@1.0", entries)
	require.Equal(t, []int{2, 2}, in.RetryPattern)
}
