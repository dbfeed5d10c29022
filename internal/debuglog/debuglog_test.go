// internal/debuglog/debuglog_test.go
package debuglog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLogAndReadTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.jsonl")

	logger := New(path, "run-1")
	logger.Log(KindStart, map[string]any{
		"mode":         "watch",
		"root":         "/sessions",
		"project_root": "/work",
	})
	logger.Log(KindEventReceived, map[string]any{"raw_type": "task_complete"})
	logger.Log(KindStop, map[string]any{"mode": "watch"})
	logger.Close()

	records, err := ReadTail(path)
	if err != nil {
		t.Fatalf("ReadTail failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.Kind != KindStart {
		t.Errorf("expected kind %s, got %s", KindStart, first.Kind)
	}
	if first.PID != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), first.PID)
	}
	if first.RunID != "run-1" {
		t.Errorf("expected run id run-1, got %s", first.RunID)
	}
	if first.Mode != "watch" || first.Root != "/sessions" || first.ProjectRoot != "/work" {
		t.Errorf("kind-specific fields not flattened: %+v", first)
	}
	if first.TS == "" {
		t.Error("expected a timestamp tag")
	}
}

func TestReadTailSkipsPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.jsonl")

	content := `{"ts":"2026-08-30T12:00:00Z","pid":100,"kind":"bridge-start","mode":"watch"}
garbage not json
{"ts":"2026-08-30T12:00:01Z","pid":100,"kind":"bridge-stop"}
{"ts":"2026-08-30T12:00:02Z","pid":101,"kind":"bridge-sta`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := ReadTail(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 parseable records, got %d", len(records))
	}
}

func TestReadTailMissingFile(t *testing.T) {
	records, err := ReadTail(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("missing log should not be an error: %v", err)
	}
	if records != nil {
		t.Errorf("expected no records, got %v", records)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Log(KindStart, map[string]any{"mode": "once"})
	logger.Close()
}

func TestLoggerSwallowsWriteFailures(t *testing.T) {
	// A path that cannot be created: the parent is a file.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := New(filepath.Join(blocker, "debug.jsonl"), "run-1")
	logger.Log(KindStart, nil) // must not panic or error
	logger.Close()
}
