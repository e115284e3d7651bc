package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Balchandar/intentusnet/pkg/contracts"
)

// runEstimateCmd implements `intentusnet estimate <envelope.json>`: it picks
// the same agent Route would pick and reports the estimated cost against the
// envelope's contract, without writing a WAL entry or invoking anything.
//
// Exit codes:
//
//	0 = within budget
//	1 = estimation succeeded but the estimate exceeds maxCostUnits
//	2 = usage or environment error
func runEstimateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("estimate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		output string
		noStub bool
	)
	cmd.StringVar(&output, "output", "table", "json | jsonl | table")
	cmd.BoolVar(&noStub, "no-stub", false, "do not auto-register the echo stub agent for this envelope's intent")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: intentusnet estimate <envelope.json> [--output json|jsonl|table]")
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
	rt, _, err := buildRuntime(echoIntent)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer rt.Close()

	est, err := rt.Estimate(env)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	if err := writeOne(stdout, format, est, func() [][2]string {
		return [][2]string{
			{"agent", est.AgentName},
			{"estimatedCost", fmt.Sprintf("%d", est.EstimatedCost)},
			{"maxCostUnits", fmt.Sprintf("%d", est.MaxCostUnits)},
			{"withinBudget", fmt.Sprintf("%v", est.WithinBudget)},
		}
	}); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	if !est.WithinBudget {
		return 1
	}
	return 0
}
