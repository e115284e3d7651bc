package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Balchandar/intentusnet/pkg/recovery"
)

// runRecoveryCmd dispatches `intentusnet recovery <scan|resume>`.
func runRecoveryCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet recovery <scan|resume> [arguments]")
		return 2
	}
	switch args[0] {
	case "scan":
		return runRecoveryScan(args[1:], stdout, stderr)
	case "resume":
		return runRecoveryResume(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown recovery subcommand: %s\n", args[0])
		return 2
	}
}

// runRecoveryScan implements `recovery scan`: a read-only classification of
// every execution lacking a terminal WAL entry.
//
// Exit codes: 0 scan completed (regardless of findings), 2 usage/env error.
func runRecoveryScan(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("recovery scan", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var output string
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	format, err := parseOutputFormat(output)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	rt, _, err := buildRuntime(nil)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer rt.Close()

	findings, err := rt.RecoveryScan()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	if err := writeMany(stdout, format, findings, func(f recovery.Finding) string {
		return fmt.Sprintf("%-36s %-7s %-28s %s", f.ExecutionID, f.Decision, f.Reason, f.LastStepID)
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	return 0
}

// runRecoveryResume implements `recovery resume <executionId>`: a
// destructive operation gated by INTENTUSNET_MODE, INTENTUSNET_AUTH_TOKEN,
// and (absent --yes / INTENTUSNET_AUTO_CONFIRM) an interactive prompt. It
// scans first and refuses anything not freshly classified RESUME — a
// finding computed moments earlier could already be stale if another
// process resumed or aborted it first, so resume always re-derives its own
// finding rather than trusting a cached one.
//
// Exit codes:
//
//	0  = resumed
//	1  = declined (not confirmed, or re-classified BLOCK)
//	2  = usage, environment, or authorization error
func runRecoveryResume(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("recovery resume", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		token string
		yes   bool
	)
	cmd.StringVar(&token, "token", "", "bearer token, required when INTENTUSNET_AUTH_TOKEN is set")
	cmd.BoolVar(&yes, "yes", false, "skip the interactive confirmation prompt")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet recovery resume <executionId> [--token T] [--yes]")
		return 2
	}
	executionID := cmd.Arg(0)

	rt, cfg, err := buildRuntime(nil)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer rt.Close()

	if err := requireWritable(cfg); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	if err := requireAuthToken(cfg, token); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	findings, err := rt.RecoveryScan()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	var target *recovery.Finding
	for i := range findings {
		if findings[i].ExecutionID == executionID {
			target = &findings[i]
			break
		}
	}
	if target == nil {
		fmt.Fprintln(stderr, "no incomplete execution found for:", executionID)
		return 1
	}
	if target.Decision != recovery.DecisionResume {
		fmt.Fprintf(stderr, "execution %s is classified %s (%s); refusing to resume\n", executionID, target.Decision, target.Reason)
		return 1
	}

	if !yes {
		confirmed, err := confirmDestructive(cfg, defaultStdin, stdout,
			fmt.Sprintf("Resume execution %s (last step %s)?", executionID, target.LastStepID))
		if err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return 2
		}
		if !confirmed {
			fmt.Fprintln(stdout, "aborted: not confirmed")
			return 1
		}
	}

	if err := rt.RecoveryResume(*target, noopCompensation); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	fmt.Fprintln(stdout, "resumed:", executionID)
	return 0
}

// noopCompensation is the CLI's default compensation hook: it accepts the
// resume without performing any domain-specific reversal, since the CLI has
// no knowledge of what an external agent's reversible step actually did.
// Embedding pkg/runtime as a library is expected to supply a real hook.
func noopCompensation(recovery.Finding) error {
	return nil
}
