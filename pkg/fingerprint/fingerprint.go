// Package fingerprint computes the execution fingerprint used to detect
// behavioral drift across repeated runs of the same envelope: a SHA-256
// digest over everything that should be identical run-to-run, deliberately
// excluding anything that legitimately varies (timestamps, execution IDs,
// trace IDs).
package fingerprint

import (
	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/wal"
)

// Input is the canonical tuple hashed into a fingerprint. Every field is
// something a deterministic rerun must reproduce exactly; anything that
// varies by construction (timestamps, executionId, traceId) has no field
// here at all, rather than being stripped out after the fact.
type Input struct {
	IntentSequence []string `json:"intentSequence"`
	ToolSequence   []string `json:"toolSequence"`
	ParamHashes    []string `json:"paramHashes"`
	OutputHashes   []string `json:"outputHashes"`
	RetryPattern   []int    `json:"retryPattern"`
	ExecutionOrder []string `json:"executionOrder"`
	TimeoutValues  []int64  `json:"timeoutValues"`
}

// Compute returns the hex SHA-256 digest of in's canonical encoding.
func Compute(in Input) (string, error) {
	h, err := canonicalize.CanonicalHash(in)
	if err != nil {
		return "", ierrors.Wrap(ierrors.CodeConsistencyViolation, "fingerprint: hash input", err)
	}
	return h, nil
}

// FromWALEntries derives a fingerprint Input from one execution's WAL
// entries, in file order. Only step.started/step.completed/step.failed
// entries contribute to the tuple, since those are the entries that are
// load-bearing for a rerun's behavior.
func FromWALEntries(intentName string, entries []wal.Entry) Input {
	in := Input{IntentSequence: []string{intentName}}
	attempts := map[string]int{}

	for _, e := range entries {
		switch e.Type {
		case wal.EntryStepStarted:
			agentName, _ := e.Payload["agentName"].(string)
			in.ToolSequence = append(in.ToolSequence, agentName)
			in.ExecutionOrder = append(in.ExecutionOrder, agentName)
			if inputHash, ok := e.Payload["inputHash"].(string); ok {
				in.ParamHashes = append(in.ParamHashes, inputHash)
			}
			if contract, ok := e.Payload["contract"].(map[string]any); ok {
				if timeoutMs, ok := contract["timeoutMs"].(float64); ok {
					in.TimeoutValues = append(in.TimeoutValues, int64(timeoutMs))
				}
			}
			attempts[agentName]++
		case wal.EntryStepCompleted:
			if outputHash, ok := e.Payload["outputHash"].(string); ok {
				in.OutputHashes = append(in.OutputHashes, outputHash)
			}
		case wal.EntryStepFailed:
			in.OutputHashes = append(in.OutputHashes, "")
		}
	}

	for _, agentName := range in.ToolSequence {
		in.RetryPattern = append(in.RetryPattern, attempts[agentName])
	}

	return in
}

// Verify reports whether every fingerprint in runs is identical. A mismatch
// is always a typed DETERMINISM_VIOLATION — the caller must surface it to
// the operator, never silently re-run or heal it.
func Verify(runs []string) error {
	if len(runs) < 2 {
		return nil
	}
	want := runs[0]
	for i, got := range runs[1:] {
		if got != want {
			return ierrors.New(ierrors.CodeDeterminismViolation, "execution fingerprint mismatch across runs").
				WithDetails(map[string]any{"expected": want, "got": got, "runIndex": i + 1})
		}
	}
	return nil
}
