// internal/debuglog/debuglog.go
package debuglog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record kinds written by the bridge. The reaper replays KindStart and
// KindStop to reconstruct which watcher processes are still running.
const (
	KindStart            = "bridge-start"
	KindStop             = "bridge-stop"
	KindLockAcquired     = "watch-lock-acquired"
	KindLockBusy         = "watch-lock-busy"
	KindLockStaleRemoved = "watch-lock-stale-removed"
	KindLockReleased     = "watch-lock-released"
	KindEventReceived    = "event-received"
	KindEventDuplicate   = "event-duplicate"
	KindCommandStart     = "hook-command-start"
	KindCommandFinish    = "hook-command-finish"
	KindCleanupStart     = "watch-cleanup-start"
	KindCleanupDone      = "watch-cleanup-done"
	KindReaperSignal     = "reaper-signal"
)

// maxFileSize caps debug log growth. When exceeded the live file is
// renamed aside and a fresh one started; readers only ever need the
// recent tail.
const maxFileSize = 64 * 1024 * 1024

// Record is one debug log line. Kind-specific data rides in Fields and
// is flattened into the JSON object alongside the fixed tags.
type Record struct {
	TS     string         `json:"ts"`
	PID    int            `json:"pid"`
	Kind   string         `json:"kind"`
	RunID  string         `json:"run_id,omitempty"`
	Fields map[string]any `json:"-"`
}

// MarshalJSON flattens Fields into the top-level object.
func (r Record) MarshalJSON() ([]byte, error) {
	obj := map[string]any{
		"ts":   r.TS,
		"pid":  r.PID,
		"kind": r.Kind,
	}
	if r.RunID != "" {
		obj["run_id"] = r.RunID
	}
	for k, v := range r.Fields {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// Logger appends NDJSON trace records to a file. Every write failure is
// swallowed: tracing is best-effort and must never take down the
// bridge. Multiple processes may append to the same file concurrently;
// each record is a single O_APPEND write.
type Logger struct {
	path  string
	runID string
	mu    sync.Mutex
	file  *os.File
	size  int64
}

// New creates a Logger appending to path, tagging every record with
// runID. A nil Logger is valid and discards everything.
func New(path, runID string) *Logger {
	return &Logger{path: path, runID: runID}
}

// Log appends one record of the given kind. Errors are swallowed.
func (l *Logger) Log(kind string, fields map[string]any) {
	if l == nil {
		return
	}

	rec := Record{
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		PID:    os.Getpid(),
		Kind:   kind,
		RunID:  l.runID,
		Fields: fields,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if err := l.open(); err != nil {
			return
		}
	}
	if l.size+int64(len(data)) > maxFileSize {
		l.rotate()
	}
	if n, err := l.file.Write(data); err == nil {
		l.size += int64(n)
	}
}

// Close closes the underlying file, if open.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.size = info.Size()
	return nil
}

// rotate renames the live file aside and starts a new one. No gzip
// chain: unlike operational logs, old trace data has no retention
// value beyond the single previous generation.
func (l *Logger) rotate() {
	l.file.Close()
	l.file = nil
	os.Rename(l.path, fmt.Sprintf("%s.1", l.path))
	l.open()
}
