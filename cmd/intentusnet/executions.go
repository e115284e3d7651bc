package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/runtime"
)

// runExecutionsCmd dispatches the `intentusnet executions <sub>` group.
func runExecutionsCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet executions <list|show|trace|diff> [arguments]")
		return 2
	}
	switch args[0] {
	case "list":
		return runExecutionsList(args[1:], stdout, stderr)
	case "show":
		return runExecutionsShow(args[1:], stdout, stderr)
	case "trace":
		return runExecutionsTrace(args[1:], stdout, stderr)
	case "diff":
		return runExecutionsDiff(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown executions subcommand: %s\n", args[0])
		return 2
	}
}

// listExecutionIDs scans the records directory for finalized executions,
// sorted by id for deterministic output.
func listExecutionIDs(rt *runtime.Runtime) ([]string, error) {
	recordsDir := rt.Layout().RecordsDir
	entries, err := os.ReadDir(recordsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("executions: read records dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(ids)
	return ids, nil
}

// runExecutionsList implements `executions list`.
//
// Exit codes: 0 always (an empty result is not an error); 2 on usage/env
// error.
func runExecutionsList(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("executions list", flag.ContinueOnError)
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

	ids, err := listExecutionIDs(rt)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	type row struct {
		ExecutionID string `json:"executionId"`
	}
	rows := make([]row, len(ids))
	for i, id := range ids {
		rows[i] = row{ExecutionID: id}
	}

	if err := writeMany(stdout, format, rows, func(r row) string { return r.ExecutionID }); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	return 0
}

// runExecutionsShow implements `executions show <executionId>`, identical to
// `retrieve` — the latter is kept as the short top-level alias operators
// expect from a lookup-first CLI.
//
// Exit codes: 0 found, 1 not found / inconsistent, 2 usage/env error.
func runExecutionsShow(args []string, stdout, stderr io.Writer) int {
	return runRetrieveCmd(args, stdout, stderr)
}

// runExecutionsTrace implements `executions trace <executionId>`: the
// ordered event timeline recorded for one execution.
//
// Exit codes: 0 found, 1 not found / inconsistent, 2 usage/env error.
func runExecutionsTrace(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("executions trace", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var output string
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet executions trace <executionId> [--output json|jsonl|table]")
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

	if err := writeMany(stdout, format, record.Events, func(ev contracts.RecordedEvent) string {
		return fmt.Sprintf("%4d  %-28s %-20s %s", ev.Seq, ev.Type, ev.Agent, ev.Timestamp)
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	return 0
}

type executionDiff struct {
	ExecutionA       string `json:"executionA"`
	ExecutionB       string `json:"executionB"`
	FingerprintA     string `json:"fingerprintA"`
	FingerprintB     string `json:"fingerprintB"`
	FingerprintMatch bool   `json:"fingerprintMatch"`
	EventCountA      int    `json:"eventCountA"`
	EventCountB      int    `json:"eventCountB"`
	FirstDivergence  int    `json:"firstDivergenceSeq,omitempty"`
}

// diffRecords compares two ExecutionRecords for deterministic-replay drift:
// same fingerprint means the two runs made the same intent/tool/retry/order
// decisions regardless of timestamps or ids. A fingerprint mismatch is
// explained by the first event whose type diverges between the two
// timelines.
func diffRecords(a, b *contracts.ExecutionRecord) executionDiff {
	d := executionDiff{
		ExecutionA:       a.ExecutionID,
		ExecutionB:       b.ExecutionID,
		FingerprintA:     a.Fingerprint,
		FingerprintB:     b.Fingerprint,
		FingerprintMatch: a.Fingerprint == b.Fingerprint,
		EventCountA:      len(a.Events),
		EventCountB:      len(b.Events),
	}
	if d.FingerprintMatch {
		return d
	}
	n := len(a.Events)
	if len(b.Events) < n {
		n = len(b.Events)
	}
	for i := 0; i < n; i++ {
		if a.Events[i].Type != b.Events[i].Type {
			d.FirstDivergence = int(a.Events[i].Seq)
			return d
		}
	}
	d.FirstDivergence = n + 1
	return d
}

// runExecutionsDiff implements `executions diff <idA> <idB>`.
//
// Exit codes: 0 fingerprints match, 1 fingerprints diverge, 2 usage/env
// error or either execution not found.
func runExecutionsDiff(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("executions diff", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var output string
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: intentusnet executions diff <executionIdA> <executionIdB> [--output json|jsonl|table]")
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

	a, err := rt.Retrieve(cmd.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	b, err := rt.Retrieve(cmd.Arg(1))
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	d := diffRecords(a, b)
	if err := writeOne(stdout, format, d, func() [][2]string {
		return [][2]string{
			{"executionA", d.ExecutionA},
			{"executionB", d.ExecutionB},
			{"fingerprintMatch", fmt.Sprintf("%v", d.FingerprintMatch)},
			{"eventCountA", fmt.Sprintf("%d", d.EventCountA)},
			{"eventCountB", fmt.Sprintf("%d", d.EventCountB)},
			{"firstDivergenceSeq", fmt.Sprintf("%d", d.FirstDivergence)},
		}
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	if !d.FingerprintMatch {
		return 1
	}
	return 0
}
