// Package idempotency maintains the persistent idempotencyKey -> executionId
// index the router consults before admitting a new execution: a repeated
// key returns the original executionId instead of routing again.
package idempotency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Balchandar/intentusnet/pkg/canonicalize"
	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
)

// Index is a file-backed, fsynced idempotencyKey -> executionId map. All
// mutating operations persist atomically (temp file + rename + fsync) so a
// crash mid-write never leaves a torn index on disk.
type Index struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// Open loads (or creates) the idempotency index at path.
func Open(path string) (*Index, error) {
	idx := &Index{path: path, data: make(map[string]string)}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) load() error {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("idempotency: read index: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &idx.data)
}

func (idx *Index) persist() error {
	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("idempotency: create index dir: %w", err)
	}

	data, err := json.Marshal(idx.data)
	if err != nil {
		return fmt.Errorf("idempotency: marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(idx.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("idempotency: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("idempotency: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ierrors.Wrap(ierrors.CodeConsistencyViolation, "idempotency: fsync temp file failed", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("idempotency: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, idx.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("idempotency: rename temp file: %w", err)
	}

	dirHandle, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("idempotency: open index dir for fsync: %w", err)
	}
	defer dirHandle.Close()
	if err := dirHandle.Sync(); err != nil {
		return ierrors.Wrap(ierrors.CodeConsistencyViolation, "idempotency: fsync index dir failed", err)
	}
	return nil
}

// Lookup returns the executionId previously recorded for key, if any.
func (idx *Index) Lookup(key string) (executionID string, found bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	executionID, found = idx.data[key]
	return
}

// Record associates key with executionID, persisting the update fsynced
// before returning. Re-recording the same key with a different
// executionID is rejected: the index is append-only per key.
func (idx *Index) Record(key, executionID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.data[key]; ok {
		if existing == executionID {
			return nil
		}
		return ierrors.New(ierrors.CodeConsistencyViolation, "idempotency: key already bound to a different executionId").
			WithDetails(map[string]any{"idempotencyKey": key, "existingExecutionId": existing, "newExecutionId": executionID})
	}

	idx.data[key] = executionID
	if err := idx.persist(); err != nil {
		delete(idx.data, key)
		return err
	}
	return nil
}

// DeriveKey computes the deterministic idempotency key for env: the
// canonical hash of the envelope with routingMetadata and metadata.traceId
// excluded, since both vary between otherwise-identical retries of the
// same logical request.
func DeriveKey(env contracts.IntentEnvelope) (string, error) {
	env.RoutingMetadata = contracts.RoutingMetadata{}
	env.Metadata.TraceID = ""
	hash, err := canonicalize.CanonicalHash(env)
	if err != nil {
		return "", fmt.Errorf("idempotency: hash envelope: %w", err)
	}
	return hash, nil
}
