// Package xlock implements the per-execution lock file that prevents two
// processes from driving the same executionId concurrently. Locks are
// reclaimed from a dead or expired holder via an atomic rename, never by
// deleting and recreating the file out from under a live holder.
package xlock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Balchandar/intentusnet/pkg/ierrors"
)

// DefaultTTL is the staleness window applied when a Lock's holder process
// is still alive but has not renewed the lock.
const DefaultTTL = time.Hour

// lockFile is the on-disk representation of a held lock.
type lockFile struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Lock represents a held execution lock. Release removes it.
type Lock struct {
	path string
}

func lockPath(lockDir, executionID string) string {
	return filepath.Join(lockDir, executionID+".lock")
}

// Acquire takes the lock for executionID under lockDir, reclaiming it from
// a stale holder (dead pid, or acquiredAt older than ttl) if necessary. A
// live, non-stale holder causes Acquire to fail with LOCK_HELD.
func Acquire(lockDir, executionID string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("xlock: create lock dir: %w", err)
	}

	path := lockPath(lockDir, executionID)
	mine := lockFile{PID: os.Getpid(), AcquiredAt: time.Now().UTC()}

	if acquired, err := tryCreate(path, mine); err != nil {
		return nil, err
	} else if acquired {
		return &Lock{path: path}, nil
	}

	existing, err := readLockFile(path)
	if err != nil {
		return nil, err
	}
	if !isStale(existing, ttl) {
		return nil, ierrors.New(ierrors.CodeLockHeld, "xlock: execution lock is held by a live process").
			WithDetails(map[string]any{"executionId": executionID, "holderPid": existing.PID, "acquiredAt": existing.AcquiredAt})
	}

	if err := reclaim(path, mine); err != nil {
		return nil, err
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. It is a no-op if already released.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("xlock: release lock: %w", err)
	}
	return nil
}

func tryCreate(path string, mine lockFile) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("xlock: create lock file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(mine)
	if err != nil {
		return false, fmt.Errorf("xlock: marshal lock: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return false, fmt.Errorf("xlock: write lock: %w", err)
	}
	if err := f.Sync(); err != nil {
		return false, ierrors.Wrap(ierrors.CodeConsistencyViolation, "xlock: fsync lock file failed", err)
	}
	return true, nil
}

func readLockFile(path string) (lockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockFile{}, fmt.Errorf("xlock: read lock file: %w", err)
	}
	var lf lockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return lockFile{}, fmt.Errorf("xlock: decode lock file: %w", err)
	}
	return lf, nil
}

// isStale reports whether the lock's holder is dead or its TTL has
// elapsed.
func isStale(lf lockFile, ttl time.Duration) bool {
	if !pidAlive(lf.PID) {
		return true
	}
	return time.Since(lf.AcquiredAt) > ttl
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without affecting the process.
	return proc.Signal(syscall.Signal(0)) == nil
}

// reclaim atomically replaces a stale lock file: write the new holder's
// claim to a temp file in the same directory, fsync it, then rename over
// the stale lock. The rename is the compare-and-swap: on POSIX filesystems
// it is atomic, so no window exists where the lock file is absent.
func reclaim(path string, mine lockFile) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("xlock: create reclaim temp file: %w", err)
	}
	tmpPath := tmp.Name()

	data, err := json.Marshal(mine)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("xlock: marshal lock: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("xlock: write reclaim temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ierrors.Wrap(ierrors.CodeConsistencyViolation, "xlock: fsync reclaim temp file failed", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("xlock: close reclaim temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("xlock: rename reclaim temp file: %w", err)
	}
	return nil
}
