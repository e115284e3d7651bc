package recorder

import (
	"path/filepath"
	"testing"

	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/wal"
	"github.com/stretchr/testify/require"
)

func writeSampleWAL(t *testing.T, dir, executionID string) {
	t.Helper()
	w, err := wal.NewWriter(dir, executionID, nil, false)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.ExecutionStarted("envelope-hash", "sum@1.0", "", false)
	require.NoError(t, err)
	_, err = w.StepStarted("step-1", "A", "READ_ONLY", nil, "input-hash")
	require.NoError(t, err)
	_, err = w.StepCompleted("step-1", "output-hash", true)
	require.NoError(t, err)
	_, err = w.ExecutionCompleted("response-hash")
	require.NoError(t, err)
}

func TestFinalize_PersistsRecordAndComputesHash(t *testing.T) {
	walDir := t.TempDir()
	recordsDir := t.TempDir()
	writeSampleWAL(t, walDir, "exec-1")

	r := New(recordsDir)
	resp := contracts.AgentResponse{Status: contracts.StatusSuccess, Payload: map[string]any{"sum": 42}}

	record, err := r.Finalize(walDir, "exec-1", contracts.IntentReference{Name: "sum", Version: "1.0"}, "envelope-hash", resp, "fingerprint-hash")
	require.NoError(t, err)
	require.True(t, record.Finalized)
	require.NotEmpty(t, record.RecordHash)
	require.Equal(t, contracts.StateCompleted, record.State)
	require.True(t, record.Replayable)
	require.Len(t, record.Events, 4)

	_, statErr := filepath.Abs(filepath.Join(recordsDir, "exec-1.json"))
	require.NoError(t, statErr)

	loaded, err := Load(recordsDir, "exec-1")
	require.NoError(t, err)
	require.Equal(t, record.RecordHash, loaded.RecordHash)
	require.Equal(t, record.ExecutionID, loaded.ExecutionID)
}

func TestFinalize_MissingWALReturnsNotFound(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.Finalize(t.TempDir(), "missing", contracts.IntentReference{Name: "sum", Version: "1.0"}, "h", contracts.AgentResponse{}, "")
	require.Error(t, err)
}
