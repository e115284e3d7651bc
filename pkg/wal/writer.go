package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Balchandar/intentusnet/pkg/ierrors"
)

// ErrSigningRequired is returned by NewWriter when requireSigning is true
// but no signer was provided (REGULATED compliance mode).
var ErrSigningRequired = fmt.Errorf("wal: signing is required but no signer was configured")

// Writer appends entries to a single execution's WAL file. It is safe for
// concurrent use by multiple goroutines recording the same execution.
type Writer struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	executionID string
	lastHash    string
	seq         uint64
	signer      Signer
	requireSign bool
	clock       func() time.Time
}

// NewWriter opens (creating if absent) the WAL file for executionID under
// walDir. If requireSigning is true and signer is nil, it fails closed.
func NewWriter(walDir, executionID string, signer Signer, requireSigning bool) (*Writer, error) {
	if requireSigning && signer == nil {
		return nil, ErrSigningRequired
	}
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create wal dir: %w", err)
	}
	path := filepath.Join(walDir, executionID+".wal")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open wal file: %w", err)
	}

	w := &Writer{
		path:        path,
		file:        f,
		executionID: executionID,
		signer:      signer,
		requireSign: requireSigning,
		clock:       time.Now,
	}

	lastHash, lastSeq, err := tailHashAndSeq(path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.lastHash = lastHash
	w.seq = lastSeq
	return w, nil
}

// WithClock overrides the writer's time source, for deterministic tests.
func (w *Writer) WithClock(clock func() time.Time) *Writer {
	w.clock = clock
	return w
}

// Close closes the underlying file. It does not fsync: every Append has
// already fsynced its own entry.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Append writes one entry of entryType with the given payload, fsyncing
// before returning. Returning nil error means the entry is durable.
func (w *Writer) Append(entryType EntryType, payload map[string]any) (Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return Entry{}, ierrors.New(ierrors.CodeWALIntegrityError, "wal: writer is closed")
	}

	seq := w.seq + 1
	ts := w.clock().UTC().Format(time.RFC3339Nano)

	hash, err := computeHash(seq, w.executionID, ts, entryType, payload, w.lastHash)
	if err != nil {
		return Entry{}, fmt.Errorf("wal: compute entry hash: %w", err)
	}

	entry := Entry{
		Seq:          seq,
		ExecutionID:  w.executionID,
		TimestampISO: ts,
		Type:         entryType,
		Payload:      payload,
		PrevHash:     w.lastHash,
		EntryHash:    hash,
		Version:      schemaVersion,
	}

	if w.signer != nil {
		sig, err := w.signer.Sign([]byte(hash))
		if err != nil {
			return Entry{}, fmt.Errorf("wal: sign entry: %w", err)
		}
		entry.Signature = sig
		entry.SignerKeyID = w.signer.KeyID()
	} else if w.requireSign {
		return Entry{}, ErrSigningRequired
	}

	line, err := marshalLine(entry)
	if err != nil {
		return Entry{}, err
	}
	line = append(line, '\n')

	if _, err := w.file.Write(line); err != nil {
		return Entry{}, fmt.Errorf("wal: write entry: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return Entry{}, ierrors.Wrap(ierrors.CodeWALIntegrityError, "wal: fsync failed, entry is not durable", err)
	}

	// Durability boundary: only advance the chain once fsync has returned.
	w.seq = seq
	w.lastHash = hash

	return entry, nil
}

// ExecutionStarted writes the commit-boundary entry for a newly admitted
// execution. A caller that receives a nil error here may rely on the
// execution surviving a crash; recovery will find it via recovery.Scan.
func (w *Writer) ExecutionStarted(envelopeHash, intentName string, configHash string, requireDeterminism bool) (Entry, error) {
	payload := map[string]any{
		"executionId":        w.executionID,
		"envelopeHash":       envelopeHash,
		"intentName":         intentName,
		"requireDeterminism": requireDeterminism,
	}
	if configHash != "" {
		payload["configHash"] = configHash
	}
	return w.Append(EntryExecutionStarted, payload)
}

func (w *Writer) ExecutionCompleted(responseHash string) (Entry, error) {
	return w.Append(EntryExecutionCompleted, map[string]any{
		"executionId":  w.executionID,
		"responseHash": responseHash,
	})
}

func (w *Writer) ExecutionFailed(failureType, reason string, recoverable bool) (Entry, error) {
	return w.Append(EntryExecutionFailed, map[string]any{
		"executionId": w.executionID,
		"failureType": failureType,
		"reason":      reason,
		"recoverable": recoverable,
	})
}

func (w *Writer) StepStarted(stepID, agentName, sideEffect string, contract map[string]any, inputHash string) (Entry, error) {
	return w.Append(EntryStepStarted, map[string]any{
		"stepId":     stepID,
		"agentName":  agentName,
		"sideEffect": sideEffect,
		"contract":   contract,
		"inputHash":  inputHash,
	})
}

func (w *Writer) StepCompleted(stepID, outputHash string, success bool) (Entry, error) {
	return w.Append(EntryStepCompleted, map[string]any{
		"stepId":     stepID,
		"outputHash": outputHash,
		"success":    success,
	})
}

func (w *Writer) StepFailed(stepID, failureType, reason string, recoverable bool) (Entry, error) {
	return w.Append(EntryStepFailed, map[string]any{
		"stepId":      stepID,
		"failureType": failureType,
		"reason":      reason,
		"recoverable": recoverable,
	})
}

func (w *Writer) FallbackTriggered(fromAgent, toAgent, reason string) (Entry, error) {
	return w.Append(EntryFallbackTriggered, map[string]any{
		"fromAgent": fromAgent,
		"toAgent":   toAgent,
		"reason":    reason,
	})
}

// ContractViolated records a step that failed contract enforcement (timeout,
// exactly-once replay, budget) before the step.failed entry that follows it.
func (w *Writer) ContractViolated(stepID, rule, reason string) (Entry, error) {
	return w.Append(EntryContractViolated, map[string]any{
		"stepId": stepID,
		"rule":   rule,
		"reason": reason,
	})
}
