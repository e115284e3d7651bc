package main

import (
	"flag"
	"fmt"
	"io"
)

// runRecordsCmd dispatches `intentusnet records <verify>`.
func runRecordsCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet records verify <executionId>")
		return 2
	}
	switch args[0] {
	case "verify":
		return runRecordsVerify(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown records subcommand: %s\n", args[0])
		return 2
	}
}

// runRecordsVerify implements `records verify <executionId>`: recomputes
// RecordHash and cross-checks the record's event list against its WAL,
// reusing the same retrieval path `retrieve`/`executions show` rely on, so
// there is exactly one implementation of record/WAL consistency checking in
// the codebase.
//
// Exit codes: 0 consistent, 1 inconsistent/not found, 2 usage/env error.
func runRecordsVerify(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("records verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var output string
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet records verify <executionId> [--output json|jsonl|table]")
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

	type result struct {
		ExecutionID string `json:"executionId"`
		Consistent  bool   `json:"consistent"`
		Reason      string `json:"reason,omitempty"`
	}

	_, retrieveErr := rt.Retrieve(cmd.Arg(0))
	res := result{ExecutionID: cmd.Arg(0), Consistent: retrieveErr == nil}
	if retrieveErr != nil {
		res.Reason = retrieveErr.Error()
	}

	if err := writeOne(stdout, format, res, func() [][2]string {
		rows := [][2]string{
			{"executionId", res.ExecutionID},
			{"consistent", fmt.Sprintf("%v", res.Consistent)},
		}
		if res.Reason != "" {
			rows = append(rows, [2]string{"reason", res.Reason})
		}
		return rows
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	if !res.Consistent {
		return 1
	}
	return 0
}
