package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCLI drives Run against a fresh base dir rooted in t.TempDir and returns
// (exitCode, stdout, stderr).
func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if stdin != "" {
		defaultStdin = strings.NewReader(stdin)
		t.Cleanup(func() { defaultStdin = os.Stdin })
	}
	code := Run(append([]string{"intentusnet"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeEnvelope(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sumEnvelope = `{
  "version": "1.0",
  "intent": {"name": "sum", "version": "1.0"},
  "payload": {"a": 2, "b": 3},
  "routing": {"strategy": "DIRECT"}
}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("INTENTUSNET_BASE_DIR", dir)
	t.Setenv("INTENTUSNET_MODE", "read_write")
	t.Setenv("INTENTUSNET_COMPLIANCE_MODE", "DEVELOPMENT")
	t.Setenv("INTENTUSNET_AUTH_TOKEN", "")
	t.Setenv("INTENTUSNET_AUTO_CONFIRM", "")
	t.Setenv("INTENTUSNET_COMPLIANCE_PROFILE", "")
	return dir
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	setupEnv(t)
	code, _, _ := runCLI(t, "")
	require.Equal(t, 2, code)
}

func TestRun_UnknownCommand(t *testing.T) {
	setupEnv(t)
	code, _, stderr := runCLI(t, "", "bogus")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "Unknown command")
}

func TestRun_RouteAndRetrieve(t *testing.T) {
	dir := setupEnv(t)
	envPath := writeEnvelope(t, dir, "env.json", sumEnvelope)

	code, stdout, stderr := runCLI(t, "", "route", envPath, "--output", "json")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, `"executionId"`)

	code, listOut, _ := runCLI(t, "", "executions", "list")
	require.Equal(t, 0, code)
	id := strings.TrimSpace(listOut)
	require.NotEmpty(t, id)

	code, showOut, _ := runCLI(t, "", "retrieve", id, "--output", "json")
	require.Equal(t, 0, code)
	require.Contains(t, showOut, id)

	code, traceOut, _ := runCLI(t, "", "executions", "trace", id)
	require.Equal(t, 0, code)
	require.NotEmpty(t, traceOut)
}

func TestRun_RetrieveNotFound(t *testing.T) {
	setupEnv(t)
	code, _, stderr := runCLI(t, "", "retrieve", "does-not-exist")
	require.Equal(t, 1, code)
	require.NotEmpty(t, stderr)
}

func TestRun_EstimateWithinBudget(t *testing.T) {
	dir := setupEnv(t)
	envPath := writeEnvelope(t, dir, "env.json", sumEnvelope)

	code, stdout, stderr := runCLI(t, "", "estimate", envPath, "--output", "json")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, `"agentName"`)
}

func TestRun_ExecutionsDiffMatchesOnRepeatedSubmit(t *testing.T) {
	dir := setupEnv(t)
	envPath := writeEnvelope(t, dir, "env.json", sumEnvelope)

	_, out1, _ := runCLI(t, "", "route", envPath, "--output", "jsonl")
	_, out2, _ := runCLI(t, "", "route", envPath, "--output", "jsonl")
	require.NotEmpty(t, out1)
	require.NotEmpty(t, out2)

	code, listOut, _ := runCLI(t, "", "executions", "list")
	require.Equal(t, 0, code)
	ids := strings.Fields(strings.TrimSpace(listOut))
	require.Len(t, ids, 2)

	code, diffOut, stderr := runCLI(t, "", "executions", "diff", ids[0], ids[1], "--output", "json")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, diffOut, `"fingerprintMatch":true`)
}

func TestRun_RecoveryScanCleanAfterCompletion(t *testing.T) {
	dir := setupEnv(t)
	envPath := writeEnvelope(t, dir, "env.json", sumEnvelope)

	code, _, stderr := runCLI(t, "", "route", envPath)
	require.Equal(t, 0, code, stderr)

	code, stdout, _ := runCLI(t, "", "recovery", "scan")
	require.Equal(t, 0, code)
	require.Empty(t, strings.TrimSpace(stdout))
}

func TestRun_RecoveryResumeRefusesReadOnlyMode(t *testing.T) {
	setupEnv(t)
	t.Setenv("INTENTUSNET_MODE", "read_only")
	code, _, stderr := runCLI(t, "", "recovery", "resume", "some-id", "--yes")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "read_only")
}

func TestRun_WalAndRecordsVerifyAfterRoute(t *testing.T) {
	dir := setupEnv(t)
	envPath := writeEnvelope(t, dir, "env.json", sumEnvelope)

	code, routeOut, stderr := runCLI(t, "", "route", envPath, "--output", "jsonl")
	require.Equal(t, 0, code, stderr)
	require.NotEmpty(t, routeOut)

	code, listOut, _ := runCLI(t, "", "executions", "list")
	require.Equal(t, 0, code)
	id := strings.TrimSpace(listOut)
	require.NotEmpty(t, id)

	code, _, stderr = runCLI(t, "", "wal", "verify", id)
	require.Equal(t, 0, code, stderr)

	code, _, stderr = runCLI(t, "", "records", "verify", id)
	require.Equal(t, 0, code, stderr)
}
