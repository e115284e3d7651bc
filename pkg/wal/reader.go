package wal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Balchandar/intentusnet/pkg/crypto"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
)

// Verifier resolves a keyId to a public key for signature checks.
type Verifier interface {
	Verify(keyID string, data []byte, sigHex string) (bool, error)
}

var _ Verifier = (*crypto.KeyRegistry)(nil)

// Stable IntegrityError.Reason subtypes. Callers (notably the CLI) branch on
// these; the prose detail belongs in Detail, never in Reason.
const (
	ReasonSeqGap           = "seq_gap"
	ReasonHashChainBroken  = "hash_chain_broken"
	ReasonEntryHashInvalid = "entry_hash_invalid"
	ReasonSignatureInvalid = "signature_invalid"
)

// IntegrityError describes a specific way a WAL file failed verification.
// Reason is one of the stable Reason* subtype constants; Detail carries the
// human-readable particulars.
type IntegrityError struct {
	Path   string
	Seq    uint64
	Reason string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("wal: integrity violation in %s at seq=%d: %s: %s", e.Path, e.Seq, e.Reason, e.Detail)
}

// ReadAll decodes every well-formed JSONL line in path, in file order. A
// trailing partial line (a torn write from a crash mid-Append, before the
// newline that durably terminates it) is tolerated and silently dropped,
// since it was never fsynced and is therefore not part of the durable zone.
// Any other line that fails to parse is real corruption and surfaces as an
// IntegrityError.
func ReadAll(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	lines := bytes.Split(data, []byte("\n"))
	// bytes.Split always yields a trailing "" element when data ends with
	// '\n' (the normal, fsynced case). A non-empty trailing element means
	// the file ends mid-write.
	var tornTail []byte
	if n := len(lines); n > 0 {
		if len(lines[n-1]) > 0 {
			tornTail = lines[n-1]
		}
		lines = lines[:n-1]
	}

	var entries []Entry
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return entries, &IntegrityError{Path: path, Seq: 0, Reason: ReasonEntryHashInvalid, Detail: "malformed JSON line: " + err.Error()}
		}
		entries = append(entries, e)
	}

	if len(tornTail) > 0 {
		var e Entry
		if err := json.Unmarshal(tornTail, &e); err == nil {
			entries = append(entries, e)
		}
		// Unparseable tail: truncated after the last valid entry above.
		// Recovery resumes from there rather than treating this as corruption.
	}

	return entries, nil
}

// tailHashAndSeq returns the entryHash and seq of the last well-formed entry
// in path, so a reopened Writer can continue the chain. Returns ("", 0, nil)
// for a missing or empty file.
func tailHashAndSeq(path string) (string, uint64, error) {
	entries, err := ReadAll(path)
	if err != nil {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			// A corrupted tail cannot be safely appended to; surface it.
			return "", 0, err
		}
		return "", 0, err
	}
	if len(entries) == 0 {
		return "", 0, nil
	}
	last := entries[len(entries)-1]
	return last.EntryHash, last.Seq, nil
}

// VerifyChain checks seq contiguity and hash-chain integrity only, with no
// opinion on signing. It is what recovery scanning uses: a tampered
// structural chain is corruption regardless of the execution's compliance
// mode or whether a key verifier is available.
func VerifyChain(entries []Entry) error {
	var prevHash string
	var prevSeq uint64
	for i, e := range entries {
		wantSeq := prevSeq + 1
		if i == 0 {
			wantSeq = 1
		}
		if e.Seq != wantSeq {
			return &IntegrityError{Seq: e.Seq, Reason: ReasonSeqGap, Detail: fmt.Sprintf("expected %d got %d", wantSeq, e.Seq)}
		}
		if e.PrevHash != prevHash {
			return &IntegrityError{Seq: e.Seq, Reason: ReasonHashChainBroken, Detail: "prevHash does not match the preceding entry's entryHash"}
		}
		wantHash, err := computeHash(e.Seq, e.ExecutionID, e.TimestampISO, e.Type, e.Payload, e.PrevHash)
		if err != nil {
			return fmt.Errorf("wal: recompute hash at seq=%d: %w", e.Seq, err)
		}
		if wantHash != e.EntryHash {
			return &IntegrityError{Seq: e.Seq, Reason: ReasonEntryHashInvalid, Detail: "entryHash does not match recomputed content hash"}
		}
		prevHash = e.EntryHash
		prevSeq = e.Seq
	}
	return nil
}

// Verify checks seq contiguity and hash-chain integrity via VerifyChain,
// plus (if verifier is non-nil) signatures on signed entries. requireSigned
// forces every entry to carry a valid signature (REGULATED compliance
// mode).
func Verify(entries []Entry, verifier Verifier, requireSigned bool) error {
	if err := VerifyChain(entries); err != nil {
		return err
	}
	for _, e := range entries {
		if requireSigned && !e.IsSigned() {
			return &IntegrityError{Seq: e.Seq, Reason: ReasonSignatureInvalid, Detail: "entry is unsigned but signing is required"}
		}
		if e.IsSigned() {
			if verifier == nil {
				return &IntegrityError{Seq: e.Seq, Reason: ReasonSignatureInvalid, Detail: "entry is signed but no verifier was configured"}
			}
			ok, err := verifier.Verify(e.SignerKeyID, []byte(e.EntryHash), e.Signature)
			if err != nil {
				return &IntegrityError{Seq: e.Seq, Reason: ReasonSignatureInvalid, Detail: "signature verification error: " + err.Error()}
			}
			if !ok {
				return &IntegrityError{Seq: e.Seq, Reason: ReasonSignatureInvalid, Detail: "signature does not verify"}
			}
		}
	}
	return nil
}

// VerifyFile reads and verifies the WAL for executionID under walDir,
// returning the decoded entries on success or an *IntegrityError /
// *ierrors.IntentusError on failure.
func VerifyFile(walDir, executionID string, verifier Verifier, requireSigned bool) ([]Entry, error) {
	path := walDir + "/" + executionID + ".wal"
	entries, err := ReadAll(path)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.CodeWALIntegrityError, "wal: read failed", err)
	}
	if err := Verify(entries, verifier, requireSigned); err != nil {
		return entries, ierrors.Wrap(ierrors.CodeWALIntegrityError, "wal: verification failed", err)
	}
	return entries, nil
}
