// Package recorder builds the finalized ExecutionRecord for a completed
// execution and persists it durably. It never invokes an agent: its only
// inputs are the WAL entries the router already wrote and the final
// AgentResponse the router returned.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
	"github.com/Balchandar/intentusnet/pkg/wal"
)

// Recorder persists ExecutionRecords under a records directory.
type Recorder struct {
	recordsDir string
}

// New returns a Recorder writing under recordsDir.
func New(recordsDir string) *Recorder {
	return &Recorder{recordsDir: recordsDir}
}

func terminalState(entries []wal.Entry) contracts.ExecutionState {
	for i := len(entries) - 1; i >= 0; i-- {
		switch entries[i].Type {
		case wal.EntryExecutionCompleted:
			return contracts.StateCompleted
		case wal.EntryExecutionFailed:
			return contracts.StateFailed
		case wal.EntryExecutionAborted:
			return contracts.StateAborted
		}
	}
	return contracts.StateInProgress
}

func toRecordedEvents(entries []wal.Entry) []contracts.RecordedEvent {
	events := make([]contracts.RecordedEvent, 0, len(entries))
	for _, e := range entries {
		agent, _ := e.Payload["agentName"].(string)
		events = append(events, contracts.RecordedEvent{
			Seq:       e.Seq,
			Type:      string(e.Type),
			Timestamp: e.TimestampISO,
			Agent:     agent,
			Payload:   e.Payload,
		})
	}
	return events
}

// Finalize reads the full WAL for executionID, builds the ExecutionRecord
// for it (response and fingerprint supplied by the caller, since neither is
// reconstructible from the WAL's hashes alone), computes RecordHash, and
// persists it. The record is not finalized (and RecordHash is not set) if
// the WAL has no terminal entry yet — callers should not invoke Finalize
// until the router has returned.
func (rec *Recorder) Finalize(walDir, executionID string, intent contracts.IntentReference, envelopeHash string, response contracts.AgentResponse, fingerprintHash string) (*contracts.ExecutionRecord, error) {
	entries, err := wal.ReadAll(filepath.Join(walDir, executionID+".wal"))
	if err != nil {
		return nil, ierrors.Wrap(ierrors.CodeWALIntegrityError, "recorder: read wal", err)
	}
	if len(entries) == 0 {
		return nil, ierrors.New(ierrors.CodeNotFound, "recorder: no wal entries for execution").
			WithDetails(map[string]any{"executionId": executionID})
	}

	state := terminalState(entries)
	record := &contracts.ExecutionRecord{
		ExecutionID:  executionID,
		EnvelopeHash: envelopeHash,
		Intent:       intent,
		State:        state,
		StartedAt:    entries[0].TimestampISO,
		FinishedAt:   entries[len(entries)-1].TimestampISO,
		Events:       toRecordedEvents(entries),
		Response:     &response,
		Fingerprint:  fingerprintHash,
		Finalized:    state == contracts.StateCompleted || state == contracts.StateFailed || state == contracts.StateAborted,
		Replayable:   state == contracts.StateCompleted,
	}

	if record.Finalized {
		hash, err := canonicalize.CanonicalHash(record.Hashable())
		if err != nil {
			return nil, fmt.Errorf("recorder: hash record: %w", err)
		}
		record.RecordHash = hash
	}

	if err := rec.persist(record); err != nil {
		return nil, err
	}
	return record, nil
}

// persist writes record atomically: encode to a temp file in the same
// directory, fsync it, rename over the final path, then fsync the
// directory so the rename itself is durable.
func (rec *Recorder) persist(record *contracts.ExecutionRecord) error {
	if err := os.MkdirAll(rec.recordsDir, 0o755); err != nil {
		return fmt.Errorf("recorder: create records dir: %w", err)
	}

	data, err := canonicalize.JCSString(record)
	if err != nil {
		return fmt.Errorf("recorder: encode record: %w", err)
	}

	finalPath := filepath.Join(rec.recordsDir, record.ExecutionID+".json")
	tmp, err := os.CreateTemp(rec.recordsDir, record.ExecutionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("recorder: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("recorder: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ierrors.Wrap(ierrors.CodeConsistencyViolation, "recorder: fsync temp file failed", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("recorder: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("recorder: rename temp file: %w", err)
	}

	dir, err := os.Open(rec.recordsDir)
	if err != nil {
		return fmt.Errorf("recorder: open records dir for fsync: %w", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return ierrors.Wrap(ierrors.CodeConsistencyViolation, "recorder: fsync records dir failed", err)
	}

	return nil
}

// Load reads a persisted ExecutionRecord back from disk without any
// verification; pkg/retrieval is responsible for integrity checking.
func Load(recordsDir, executionID string) (*contracts.ExecutionRecord, error) {
	path := filepath.Join(recordsDir, executionID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierrors.New(ierrors.CodeNotFound, "recorder: no record for execution").
				WithDetails(map[string]any{"executionId": executionID})
		}
		return nil, fmt.Errorf("recorder: read record: %w", err)
	}
	var record contracts.ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("recorder: decode record: %w", err)
	}
	return &record, nil
}
