// internal/watchlock/lock.go
package watchlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLocked is returned when the lock is held by a live process. The
// caller exits the watch attempt cleanly; contention is expected, not
// exceptional.
var ErrLocked = errors.New("watch lock held by another process")

// Lock is the on-disk lock descriptor plus the acquisition handle.
// At most one non-stale descriptor may exist at a lock path at a time;
// that is the mutual-exclusion invariant continuous-watch mode rests on.
type Lock struct {
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"createdAt"`

	path string
}

// Acquire attempts an exclusive, create-only write of a lock descriptor
// at path. If a descriptor already exists, its owner's liveness decides
// the outcome: a dead owner's lock is stale and gets deleted before one
// retry; a live owner means ErrLocked.
func Acquire(path string) (*Lock, error) {
	lock, err := tryCreate(path)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, ErrLocked) {
		return nil, err
	}

	existing, readErr := Read(path)
	if readErr != nil {
		// Unreadable descriptor with the file present: most likely a
		// half-written lock from a crashed process. Treat as stale.
		if os.IsNotExist(readErr) {
			return tryCreate(path)
		}
	} else if processAlive(existing.PID) {
		return nil, fmt.Errorf("%w: pid %d", ErrLocked, existing.PID)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale lock: %w", err)
	}

	// Single retry. Losing the recreate race to another process means
	// that process now legitimately holds the lock.
	return tryCreate(path)
}

// Release deletes the lock file, but only when its recorded PID still
// matches this process. A blind delete could remove a lock another
// process re-acquired after this one's descriptor went stale.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}

	existing, err := Read(l.path)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Read parses the lock descriptor at path.
func Read(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	lock.path = path
	return &lock, nil
}

// Holder reports the live owner of the lock at path, if any.
func Holder(path string) (*Lock, bool) {
	lock, err := Read(path)
	if err != nil {
		return nil, false
	}
	if !processAlive(lock.PID) {
		return lock, false
	}
	return lock, true
}

func tryCreate(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := &Lock{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC(),
		path:      path,
	}
	data, err := json.Marshal(lock)
	if err != nil {
		return nil, fmt.Errorf("marshaling lock: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return lock, nil
}

// processAlive checks liveness via signal 0, which probes for existence
// without delivering anything. A recycled PID can alias a dead owner;
// the recovery path accepts that as a bounded risk window.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
