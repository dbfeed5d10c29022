// internal/watchlock/lock_test.go
package watchlock

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// deadPID returns the PID of a process that has already exited.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatal(err)
	}
	return cmd.Process.Pid
}

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if lock.PID != os.Getpid() {
		t.Errorf("expected own pid %d, got %d", os.Getpid(), lock.PID)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file should exist: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be gone after release")
	}
}

func TestAcquireConflictWithLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer first.Release()

	// The descriptor records this test process, which is very much
	// alive, so a second attempt must fail.
	if _, err := Acquire(path); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestAcquireRecoversStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")

	stale := Lock{PID: deadPID(t), CreatedAt: time.Now().Add(-time.Hour)}
	data, _ := json.Marshal(stale)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("expected stale lock recovery, got %v", err)
	}
	defer lock.Release()

	if lock.PID != os.Getpid() {
		t.Errorf("recovered lock should record our pid, got %d", lock.PID)
	}
}

func TestAcquireRecoversCorruptLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("expected corrupt lock to be treated as stale, got %v", err)
	}
	lock.Release()
}

func TestReleaseOnlyIfOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}

	// Simulate another process re-acquiring after our descriptor was
	// replaced: the on-disk PID no longer matches.
	other := Lock{PID: os.Getpid() + 1, CreatedAt: time.Now()}
	data, _ := json.Marshal(other)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release should be a no-op for a lock we no longer own: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("another process's lock must not be blind-deleted")
	}
}

func TestHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")

	if _, live := Holder(path); live {
		t.Error("no lock file means no holder")
	}

	lock, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	holder, live := Holder(path)
	if !live || holder.PID != os.Getpid() {
		t.Errorf("expected live holder %d, got %v live=%v", os.Getpid(), holder, live)
	}
}

func TestHolderStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")

	stale := Lock{PID: deadPID(t), CreatedAt: time.Now()}
	data, _ := json.Marshal(stale)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	holder, live := Holder(path)
	if live {
		t.Error("dead owner should not count as a live holder")
	}
	if holder == nil {
		t.Error("the stale descriptor itself should still be returned")
	}
}
