package recovery

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Balchandar/intentusnet/pkg/wal"
	"github.com/stretchr/testify/require"
)

func TestScan_IgnoresCompletedExecutions(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.NewWriter(dir, "exec-done", nil, false)
	require.NoError(t, err)
	_, err = w.ExecutionStarted("h", "sum@1.0", "", false)
	require.NoError(t, err)
	_, err = w.ExecutionCompleted("rh")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	findings, err := Scan(dir)
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestScan_BlocksOnIrreversibleInFlightStep(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.NewWriter(dir, "exec-crash", nil, false)
	require.NoError(t, err)
	_, err = w.ExecutionStarted("h", "charge@1.0", "", false)
	require.NoError(t, err)
	_, err = w.StepStarted("step-1", "Billing", "IRREVERSIBLE", nil, "in-hash")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	findings, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, DecisionBlock, findings[0].Decision)
	require.Equal(t, "irreversible_in_flight", findings[0].Reason)
}

func TestScan_ResumesOnReversibleInFlightStep(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.NewWriter(dir, "exec-crash2", nil, false)
	require.NoError(t, err)
	_, err = w.ExecutionStarted("h", "sum@1.0", "", false)
	require.NoError(t, err)
	_, err = w.StepStarted("step-1", "A", "REVERSIBLE", nil, "in-hash")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	findings, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, DecisionResume, findings[0].Decision)
}

func TestScan_BlocksOnCorruptedWAL(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.NewWriter(dir, "exec-corrupt", nil, false)
	require.NoError(t, err)
	_, err = w.ExecutionStarted("h", "sum@1.0", "", false)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "exec-corrupt.wal")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("not json\n")...), 0o644))

	findings, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, DecisionBlock, findings[0].Decision)
	require.Equal(t, "wal_corrupted", findings[0].Reason)
}

func TestScan_BlocksOnTamperedButParseableWAL(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.NewWriter(dir, "exec-tampered", nil, false)
	require.NoError(t, err)
	_, err = w.ExecutionStarted("h", "sum@1.0", "", false)
	require.NoError(t, err)
	_, err = w.StepStarted("step-1", "A", "REVERSIBLE", nil, "in-hash")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "exec-tampered.wal")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	require.Len(t, lines, 2)

	var second wal.Entry
	require.NoError(t, json.Unmarshal(lines[1], &second))
	second.Payload["agentName"] = "tampered"
	tamperedLine, err := json.Marshal(second)
	require.NoError(t, err)
	lines[1] = tamperedLine

	rewritten := bytes.Join(lines, []byte("\n"))
	rewritten = append(rewritten, '\n')
	require.NoError(t, os.WriteFile(path, rewritten, 0o644))

	findings, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, DecisionBlock, findings[0].Decision)
	require.Equal(t, "wal_corrupted", findings[0].Reason)
}

func TestResume_RefusesWithoutCompensationHook(t *testing.T) {
	f := Finding{ExecutionID: "exec-1", Decision: DecisionResume}
	err := Resume(f, nil)
	require.Error(t, err)
}

func TestResume_RefusesBlockedFinding(t *testing.T) {
	f := Finding{ExecutionID: "exec-1", Decision: DecisionBlock}
	err := Resume(f, func(Finding) error { return nil })
	require.Error(t, err)
}
