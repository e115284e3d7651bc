// Package retrieval implements read-only historical lookup of finalized
// executions. It never invokes an agent and never mutates a WAL or a
// record: every operation here is pure verification and lookup.
package retrieval

import (
	"fmt"
	"path/filepath"

	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/recorder"
	"github.com/Balchandar/intentusnet/pkg/wal"
)

// Engine answers executionId -> ExecutionRecord lookups, cross-checking
// the persisted record against its WAL.
type Engine struct {
	walDir     string
	recordsDir string
	verifier   wal.Verifier
}

// New returns a retrieval Engine. verifier may be nil when WAL entries are
// never signed (DEVELOPMENT/STANDARD without signing configured).
func New(walDir, recordsDir string, verifier wal.Verifier) *Engine {
	return &Engine{walDir: walDir, recordsDir: recordsDir, verifier: verifier}
}

// Get loads the ExecutionRecord for executionID, verifies its RecordHash,
// and cross-checks it against the execution's WAL: same envelope hash,
// same event count, and every event type/seq lines up in order. Any
// mismatch is a CONSISTENCY_VIOLATION — never silently corrected.
func (e *Engine) Get(executionID string) (*contracts.ExecutionRecord, error) {
	record, err := recorder.Load(e.recordsDir, executionID)
	if err != nil {
		return nil, err
	}

	if err := e.verifyRecordHash(record); err != nil {
		return nil, err
	}

	entries, err := wal.ReadAll(filepath.Join(e.walDir, executionID+".wal"))
	if err != nil {
		return nil, ierrors.Wrap(ierrors.CodeWALIntegrityError, "retrieval: read wal", err)
	}
	if len(entries) > 0 {
		if err := wal.Verify(entries, e.verifier, false); err != nil {
			return nil, ierrors.Wrap(ierrors.CodeWALIntegrityError, "retrieval: wal verification failed", err)
		}
	}

	if err := crossCheck(record, entries); err != nil {
		return nil, err
	}

	return record, nil
}

func (e *Engine) verifyRecordHash(record *contracts.ExecutionRecord) error {
	if !record.Finalized {
		return nil
	}
	want, err := canonicalize.CanonicalHash(record.Hashable())
	if err != nil {
		return fmt.Errorf("retrieval: recompute record hash: %w", err)
	}
	if want != record.RecordHash {
		return ierrors.New(ierrors.CodeConsistencyViolation, "recordHash does not match recomputed content hash").
			WithDetails(map[string]any{"executionId": record.ExecutionID, "expected": want, "got": record.RecordHash})
	}
	return nil
}

// crossCheck verifies the record's event list has the same length, seq
// ordering, and type sequence as the WAL it was built from.
func crossCheck(record *contracts.ExecutionRecord, entries []wal.Entry) error {
	if len(record.Events) != len(entries) {
		return ierrors.New(ierrors.CodeConsistencyViolation, "record event count does not match wal entry count").
			WithDetails(map[string]any{
				"executionId": record.ExecutionID,
				"recordCount": len(record.Events),
				"walCount":    len(entries),
			})
	}
	for i, ev := range record.Events {
		if ev.Seq != entries[i].Seq || ev.Type != string(entries[i].Type) {
			return ierrors.New(ierrors.CodeConsistencyViolation, "record event does not match wal entry at index").
				WithDetails(map[string]any{
					"executionId": record.ExecutionID,
					"index":       i,
					"recordEvent": ev.Type,
					"walEvent":    entries[i].Type,
				})
		}
	}
	if len(entries) > 0 {
		var envelopeHash string
		if eh, ok := entries[0].Payload["envelopeHash"].(string); ok {
			envelopeHash = eh
		}
		if envelopeHash != "" && envelopeHash != record.EnvelopeHash {
			return ierrors.New(ierrors.CodeConsistencyViolation, "record envelopeHash does not match wal execution.started envelopeHash").
				WithDetails(map[string]any{"executionId": record.ExecutionID})
		}
	}
	return nil
}
