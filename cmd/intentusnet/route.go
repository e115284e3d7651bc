package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/reqid"
)

// loadEnvelope reads and decodes an envelope file, stamping a fresh
// RequestID when the file doesn't already carry one (the CLI's analogue of
// an inbound request missing an X-Request-ID header).
func loadEnvelope(path string) (contracts.IntentEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return contracts.IntentEnvelope{}, fmt.Errorf("read envelope: %w", err)
	}
	var env contracts.IntentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return contracts.IntentEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Metadata.RequestID == "" {
		env.Metadata.RequestID = reqid.New()
	}
	return env, nil
}

// runRouteCmd implements `intentusnet route <envelope.json>`.
//
// Exit codes:
//
//	0 = the intent was routed and the agent returned a success response
//	1 = routing failed (no agent registered, contract invalid,
//	    determinism/budget violation) or the response was not a success
//	2 = usage or environment error
func runRouteCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("route", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		output    string
		noStub    bool
		stubAgent string
	)
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")
	cmd.BoolVar(&noStub, "no-stub", false, "do not auto-register the echo stub agent for this envelope's intent")
	cmd.StringVar(&stubAgent, "stub-name", "echo", "ignored: the stub agent is always registered as \"echo\"")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet route <envelope.json> [--output json|jsonl|table] [--no-stub]")
		return 2
	}

	format, err := parseOutputFormat(output)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	env, err := loadEnvelope(cmd.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	var echoIntent *contracts.IntentReference
	if !noStub {
		echoIntent = &env.Intent
	}
	rt, cfg, err := buildRuntime(echoIntent)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer rt.Close()

	if err := requireWritable(cfg); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	record, err := rt.Submit(context.Background(), env)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}

	if err := writeOne(stdout, format, record, func() [][2]string {
		rows := [][2]string{
			{"executionId", record.ExecutionID},
			{"intent", record.Intent.String()},
			{"state", string(record.State)},
			{"fingerprint", record.Fingerprint},
		}
		if record.Response != nil {
			rows = append(rows, [2]string{"status", string(record.Response.Status)})
		}
		return rows
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	if record.Response != nil && record.Response.Status != contracts.StatusSuccess {
		return 1
	}
	return 0
}
