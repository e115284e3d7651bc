// Command intentusnet is the operator-facing CLI for the execution runtime:
// submit an intent, inspect or retrieve past executions, scan and resume
// crash-interrupted ones, and verify WAL/record integrity directly against
// the on-disk layout pkg/runtime owns.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: every subcommand writes only to stdout/
// stderr and returns an exit code, never calling os.Exit itself.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "route":
		return runRouteCmd(args[2:], stdout, stderr)
	case "estimate":
		return runEstimateCmd(args[2:], stdout, stderr)
	case "executions":
		return runExecutionsCmd(args[2:], stdout, stderr)
	case "retrieve":
		return runRetrieveCmd(args[2:], stdout, stderr)
	case "recovery":
		return runRecoveryCmd(args[2:], stdout, stderr)
	case "wal":
		return runWALCmd(args[2:], stdout, stderr)
	case "records":
		return runRecordsCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "intentusnet — deterministic execution runtime CLI")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: intentusnet <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  route <envelope.json>             submit an intent envelope for routing")
	fmt.Fprintln(w, "  estimate <envelope.json>          estimate cost/agent without executing")
	fmt.Fprintln(w, "  executions list                   list recorded executions")
	fmt.Fprintln(w, "  executions show <executionId>     print one execution's full record")
	fmt.Fprintln(w, "  executions trace <executionId>    print one execution's event timeline")
	fmt.Fprintln(w, "  executions diff <idA> <idB>       compare two executions' fingerprints")
	fmt.Fprintln(w, "  retrieve <executionId>            alias for executions show")
	fmt.Fprintln(w, "  recovery scan                     find crash-interrupted executions")
	fmt.Fprintln(w, "  recovery resume <executionId>     resume a RESUME-classified execution")
	fmt.Fprintln(w, "  wal verify <executionId>          verify one execution's WAL hash chain")
	fmt.Fprintln(w, "  records verify <executionId>      verify a record against its WAL")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Global flags (per-subcommand): --output json|jsonl|table (default table)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  INTENTUSNET_BASE_DIR         on-disk state root (default ./intentusnet-data)")
	fmt.Fprintln(w, "  INTENTUSNET_MODE             read_write (default) | read_only")
	fmt.Fprintln(w, "  INTENTUSNET_COMPLIANCE_MODE  development (default) | standard | regulated")
	fmt.Fprintln(w, "  INTENTUSNET_COMPLIANCE_PROFILE  path to a YAML profile overriding the mode above")
	fmt.Fprintln(w, "  INTENTUSNET_SIGNING_KEY_SEED    hex 64-byte Ed25519 private key for a REGULATED profile's signing_key_id")
	fmt.Fprintln(w, "  INTENTUSNET_AUTH_TOKEN       when set, required by destructive commands")
	fmt.Fprintln(w, "  INTENTUSNET_AUTO_CONFIRM     1 skips the interactive confirmation prompt")
}
