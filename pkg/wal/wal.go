// Package wal implements the append-only, hash-chained write-ahead log.
//
// Durability boundary: an execution becomes durable the moment its
// EntryExecutionStarted entry is appended and fsync returns. Before that
// point, a crash is at-most-once message loss ("pre-WAL loss") and is
// expected under chaos conditions; after it, loss requires WAL corruption,
// which hash-chain verification (VerifyChain/Verify) detects the next time
// the file is read.
package wal

import (
	"encoding/json"
	"fmt"

	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/crypto"
)

// EntryType classifies a WAL entry. Execution and step lifecycle types are
// load-bearing for invariant checking; the rest are additive observability.
type EntryType string

const (
	EntryExecutionCreated    EntryType = "execution.created"
	EntryExecutionStarted    EntryType = "execution.started"
	EntryExecutionInProgress EntryType = "execution.in_progress"
	EntryExecutionCompleted  EntryType = "execution.completed"
	EntryExecutionFailed     EntryType = "execution.failed"
	EntryExecutionAborted    EntryType = "execution.aborted"

	EntryStepStarted   EntryType = "step.started"
	EntryStepCompleted EntryType = "step.completed"
	EntryStepFailed    EntryType = "step.failed"
	EntryStepSkipped   EntryType = "step.skipped"

	EntryFallbackTriggered EntryType = "fallback.triggered"
	EntryFallbackExhausted EntryType = "fallback.exhausted"

	EntryContractValidated EntryType = "contract.validated"
	EntryContractViolated  EntryType = "contract.violated"

	EntryRecoveryStarted   EntryType = "recovery.started"
	EntryRecoveryCompleted EntryType = "recovery.completed"

	EntryCheckpoint EntryType = "checkpoint"

	// Additive, non-load-bearing observability (SPEC_FULL §5.3).
	EntryIdempotencyCheck     EntryType = "idempotency.check"
	EntryIdempotencyDuplicate EntryType = "idempotency.duplicate"
	EntryLockAcquired         EntryType = "lock.acquired"
	EntryLockReleased         EntryType = "lock.released"
	EntryLockStaleDetected    EntryType = "lock.stale_detected"
	EntryAgentInvocationStart EntryType = "agent.invocation_start"
	EntryAgentInvocationEnd   EntryType = "agent.invocation_end"
)

const schemaVersion = "1.0"

// Entry is a single immutable, hash-chained WAL record.
type Entry struct {
	Seq           uint64         `json:"seq"`
	ExecutionID   string         `json:"executionId"`
	TimestampISO  string         `json:"timestampIso"`
	Type          EntryType      `json:"entryType"`
	Payload       map[string]any `json:"payload"`
	PrevHash      string         `json:"prevHash,omitempty"`
	EntryHash     string         `json:"entryHash"`
	Signature     string         `json:"signature,omitempty"`
	SignerKeyID   string         `json:"signerKeyId,omitempty"`
	Version       string         `json:"version"`
}

// IsSigned reports whether both signature fields are populated.
func (e Entry) IsSigned() bool {
	return e.Signature != "" && e.SignerKeyID != ""
}

// computeHash returns the SHA-256 hex digest over the entry's hash-bearing
// fields (seq, executionId, timestamp, type, payload, prevHash, version),
// excluding entryHash, signature and signerKeyId.
func computeHash(seq uint64, executionID, timestampISO string, entryType EntryType, payload map[string]any, prevHash string) (string, error) {
	data := map[string]any{
		"seq":          seq,
		"executionId":  executionID,
		"timestampIso": timestampISO,
		"entryType":    string(entryType),
		"payload":      payload,
		"prevHash":     prevHash,
		"version":      schemaVersion,
	}
	return canonicalize.CanonicalHash(data)
}

// marshalLine renders an entry as a single compact JSON line, ready for
// JSONL append. It does not add the trailing newline.
func marshalLine(e Entry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal entry: %w", err)
	}
	return b, nil
}

// Signer is the subset of crypto.Signer the WAL writer needs.
type Signer interface {
	KeyID() string
	Sign(data []byte) (string, error)
}

var _ Signer = (*crypto.Ed25519Signer)(nil)
