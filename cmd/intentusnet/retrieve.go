package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Balchandar/intentusnet/pkg/ierrors"
)

// runRetrieveCmd implements `intentusnet retrieve <executionId>`: a pure
// lookup against the recorded, verified ExecutionRecord. It never invokes an
// agent and never mutates anything on disk.
//
// Exit codes:
//
//	0 = found and verified
//	1 = no such execution, or the record/WAL cross-check failed
//	2 = usage or environment error
func runRetrieveCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("retrieve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var output string
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet retrieve <executionId> [--output json|jsonl|table]")
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

	record, err := rt.Retrieve(cmd.Arg(0))
	if err != nil {
		if ie, ok := ierrors.As(err); ok && ie.Code == ierrors.CodeNotFound {
			fmt.Fprintln(stderr, "not found:", cmd.Arg(0))
			return 1
		}
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}

	if err := writeOne(stdout, format, record, func() [][2]string {
		return [][2]string{
			{"executionId", record.ExecutionID},
			{"intent", record.Intent.String()},
			{"state", string(record.State)},
			{"startedAt", record.StartedAt},
			{"finishedAt", record.FinishedAt},
			{"fingerprint", record.Fingerprint},
			{"recordHash", record.RecordHash},
		}
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	return 0
}
