// Package recovery scans a WAL directory for executions interrupted by a
// crash (no terminal WAL entry) and classifies each one RESUME or BLOCK.
// It never re-executes an irreversible step without a recorded completion:
// when in doubt, it blocks and waits for an operator.
package recovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/wal"
)

// Decision is the outcome of classifying one incomplete execution.
type Decision string

const (
	DecisionResume Decision = "RESUME"
	DecisionBlock  Decision = "BLOCK"
)

// Finding describes one incomplete execution found by Scan.
type Finding struct {
	ExecutionID string
	Decision    Decision
	Reason      string
	LastStepID  string
	SideEffect  contracts.SideEffectClass
}

func isTerminal(t wal.EntryType) bool {
	switch t {
	case wal.EntryExecutionCompleted, wal.EntryExecutionFailed, wal.EntryExecutionAborted:
		return true
	default:
		return false
	}
}

// lastInFlightStep returns the stepId and declared side-effect class of the
// most recent step.started entry that has no matching step.completed or
// step.failed, or ("", "", false) if every started step was resolved.
func lastInFlightStep(entries []wal.Entry) (stepID string, sideEffect contracts.SideEffectClass, found bool) {
	resolved := map[string]bool{}
	for _, e := range entries {
		switch e.Type {
		case wal.EntryStepCompleted, wal.EntryStepFailed, wal.EntryStepSkipped:
			if id, ok := e.Payload["stepId"].(string); ok {
				resolved[id] = true
			}
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Type != wal.EntryStepStarted {
			continue
		}
		id, _ := e.Payload["stepId"].(string)
		if resolved[id] {
			continue
		}
		se, _ := e.Payload["sideEffect"].(string)
		return id, contracts.SideEffectClass(se), true
	}
	return "", "", false
}

// classify applies the recovery rule: READ_ONLY/REVERSIBLE
// in-flight steps may RESUME; IRREVERSIBLE, WAL-corrupted, or ambiguous
// (no classifiable in-flight step despite no terminal entry) always BLOCK.
func classify(executionID string, entries []wal.Entry, readErr error) Finding {
	if readErr != nil {
		return Finding{ExecutionID: executionID, Decision: DecisionBlock, Reason: "wal_corrupted"}
	}
	if len(entries) == 0 {
		return Finding{ExecutionID: executionID, Decision: DecisionBlock, Reason: "empty_wal"}
	}

	stepID, sideEffect, found := lastInFlightStep(entries)
	if !found {
		return Finding{ExecutionID: executionID, Decision: DecisionBlock, Reason: "ambiguous_no_in_flight_step"}
	}

	switch sideEffect {
	case contracts.SideEffectIrreversible:
		return Finding{ExecutionID: executionID, Decision: DecisionBlock, Reason: "irreversible_in_flight", LastStepID: stepID, SideEffect: sideEffect}
	case contracts.SideEffectReadOnly, contracts.SideEffectReversible:
		return Finding{ExecutionID: executionID, Decision: DecisionResume, Reason: "reversible_in_flight", LastStepID: stepID, SideEffect: sideEffect}
	default:
		return Finding{ExecutionID: executionID, Decision: DecisionBlock, Reason: "ambiguous_side_effect", LastStepID: stepID, SideEffect: sideEffect}
	}
}

// Scan walks every *.wal file in walDir, classifying each execution lacking
// a terminal WAL entry. Executions that already reached a terminal state
// are not returned: they need no recovery decision.
func Scan(walDir string) ([]Finding, error) {
	entriesByFile, err := os.ReadDir(walDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ierrors.Wrap(ierrors.CodeWALIntegrityError, "recovery: read wal dir", err)
	}

	var findings []Finding
	for _, f := range entriesByFile {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".wal") {
			continue
		}
		executionID := strings.TrimSuffix(f.Name(), ".wal")
		path := filepath.Join(walDir, f.Name())

		entries, readErr := wal.ReadAll(path)
		if readErr == nil {
			// A WAL can parse cleanly yet be tampered with: broken hash chain
			// or a sequence gap. Chain integrity is checked independent of
			// signing policy, which recovery scanning has no verifier for.
			if verifyErr := wal.VerifyChain(entries); verifyErr != nil {
				readErr = verifyErr
			}
		}
		if readErr == nil && len(entries) > 0 && isTerminal(entries[len(entries)-1].Type) {
			continue
		}
		findings = append(findings, classify(executionID, entries, readErr))
	}
	return findings, nil
}

// CompensationHook reverses or finalizes a reversible in-flight step before
// resume proceeds. Recovery blocks (rather than resuming) if none is
// registered for a RESUME finding.
type CompensationHook func(finding Finding) error

// Resume applies hook to a RESUME finding. Resuming an execution that was
// not classified RESUME is refused.
func Resume(finding Finding, hook CompensationHook) error {
	if finding.Decision != DecisionResume {
		return ierrors.New(ierrors.CodeIrreversibleStepFailed, "recovery: cannot resume a blocked execution").
			WithDetails(map[string]any{"executionId": finding.ExecutionID, "reason": finding.Reason})
	}
	if hook == nil {
		return ierrors.New(ierrors.CodeConsistencyViolation, "recovery: no compensation hook registered, blocking").
			WithDetails(map[string]any{"executionId": finding.ExecutionID})
	}
	return hook(finding)
}
