// internal/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colebrumley/hookbridge/internal/event"
	"github.com/colebrumley/hookbridge/internal/manifest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDispatcher(m *manifest.Manifest) *Dispatcher {
	return New(m, 10*time.Second, testLogger(), nil, nil)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestDispatchMappedNameFiresOnce(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.log")

	m := &manifest.Manifest{
		TopHooks: []manifest.HookSource{{
			Name: "top",
			Rules: []manifest.EventRule{{
				EventName: "TaskComplete",
				Commands:  []manifest.HookCommand{{Command: "echo X >> " + out}},
			}},
		}},
	}
	d := testDispatcher(m)

	events := []string{"task_started", "agent_message", "agent_message", "task_complete"}
	for _, raw := range events {
		d.Dispatch(context.Background(), &event.Event{RawType: raw, Payload: map[string]any{}}, "")
	}

	lines := readLines(t, out)
	if len(lines) != 1 {
		t.Errorf("rule bound to TaskComplete should fire exactly once, got %d lines", len(lines))
	}
}

func TestDispatchFanOutAcrossRules(t *testing.T) {
	// A single task_complete satisfies a rule on TaskComplete and an
	// independent rule on Stop.
	dir := t.TempDir()
	outA := filepath.Join(dir, "a.log")
	outB := filepath.Join(dir, "b.log")

	m := &manifest.Manifest{
		Plugins: []manifest.HookSource{{
			Name: "plugin",
			Rules: []manifest.EventRule{{
				EventName: "TaskComplete",
				Commands:  []manifest.HookCommand{{Command: "echo A >> " + outA}},
			}},
		}},
		TopHooks: []manifest.HookSource{{
			Name: "top",
			Rules: []manifest.EventRule{{
				EventName: "Stop",
				Commands:  []manifest.HookCommand{{Command: "echo B >> " + outB}},
			}},
		}},
	}
	d := testDispatcher(m)

	ran := d.Dispatch(context.Background(), &event.Event{RawType: event.RawTaskComplete, Payload: map[string]any{}}, "")
	if ran != 2 {
		t.Errorf("expected 2 commands, ran %d", ran)
	}
	if len(readLines(t, outA)) != 1 || len(readLines(t, outB)) != 1 {
		t.Error("both rules should have fired from one physical event")
	}
}

func TestDispatchMatcherGating(t *testing.T) {
	dir := t.TempDir()
	outDeploy := filepath.Join(dir, "deploy.log")
	outRm := filepath.Join(dir, "rm.log")

	m := &manifest.Manifest{
		TopHooks: []manifest.HookSource{{
			Name: "top",
			Rules: []manifest.EventRule{
				{
					EventName: event.RawExecApproval,
					Matcher:   "^deploy",
					Commands:  []manifest.HookCommand{{Command: "echo no >> " + outDeploy}},
				},
				{
					EventName: event.RawExecApproval,
					Matcher:   "rm -rf",
					Commands:  []manifest.HookCommand{{Command: "echo yes >> " + outRm}},
				},
			},
		}},
	}
	d := testDispatcher(m)

	ev := &event.Event{
		RawType: event.RawExecApproval,
		Payload: map[string]any{"command": "rm -rf /tmp"},
	}
	d.Dispatch(context.Background(), ev, "")

	if len(readLines(t, outDeploy)) != 0 {
		t.Error("^deploy matcher should not fire on an rm -rf approval")
	}
	if len(readLines(t, outRm)) != 1 {
		t.Error("rm -rf matcher should fire")
	}
}

func TestDispatchInvalidMatcherFailsClosed(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.log")

	m := &manifest.Manifest{
		TopHooks: []manifest.HookSource{{
			Name: "top",
			Rules: []manifest.EventRule{{
				EventName: "Stop",
				Matcher:   "[unclosed",
				Commands:  []manifest.HookCommand{{Command: "echo X >> " + out}},
			}},
		}},
	}
	d := testDispatcher(m)

	ran := d.Dispatch(context.Background(), &event.Event{RawType: event.RawTaskComplete, Payload: map[string]any{}}, "")
	if ran != 0 {
		t.Errorf("invalid matcher regex must be a non-match, ran %d commands", ran)
	}
}

func TestDispatchFailureDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.log")

	m := &manifest.Manifest{
		TopHooks: []manifest.HookSource{{
			Name: "top",
			Rules: []manifest.EventRule{{
				EventName: "Stop",
				Commands: []manifest.HookCommand{
					{Command: "exit 3"},
					{Command: "echo after >> " + out},
				},
			}},
		}},
	}
	d := testDispatcher(m)

	ran := d.Dispatch(context.Background(), &event.Event{RawType: event.RawTaskComplete, Payload: map[string]any{}}, "")
	if ran != 2 {
		t.Errorf("expected both commands to run, ran %d", ran)
	}
	if len(readLines(t, out)) != 1 {
		t.Error("a failed command must not abort the commands after it")
	}
}

func TestDispatchHookEnvironment(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "env.log")

	m := &manifest.Manifest{
		ProjectRoot: "/work/repo",
		Plugins: []manifest.HookSource{{
			Name:     "notify",
			RootPath: "/plugins/notify",
			Rules: []manifest.EventRule{{
				EventName: "PreToolUse",
				Commands: []manifest.HookCommand{{
					Command: `printf '%s|%s|%s|%s\n' "$CODEX_HOOK_EVENT" "$CODEX_HOOK_RAW_TYPE" "$CODEX_HOOK_PLUGIN_ROOT" "$CODEX_HOOK_PROJECT_ROOT" >> ` + out,
				}},
			}},
		}},
	}
	d := testDispatcher(m)

	ev := &event.Event{
		RawType: event.RawExecApproval,
		Payload: map[string]any{"command": "ls", "call_id": "c1"},
	}
	d.Dispatch(context.Background(), ev, "")

	lines := readLines(t, out)
	if len(lines) != 1 {
		t.Fatalf("expected one env line, got %v", lines)
	}
	want := "PreToolUse|exec_approval_request|/plugins/notify|/work/repo"
	if lines[0] != want {
		t.Errorf("expected %q, got %q", want, lines[0])
	}
}

func TestExecuteTimeout(t *testing.T) {
	result := execute(context.Background(), "sleep 2", 100*time.Millisecond, os.Environ())
	if result.State != "timeout" {
		t.Errorf("expected timeout state, got %s (%s)", result.State, result.Error)
	}
}

func TestExecuteFailureExitCode(t *testing.T) {
	result := execute(context.Background(), "exit 7", time.Second, os.Environ())
	if result.State != "failure" {
		t.Errorf("expected failure state, got %s", result.State)
	}
	if result.ExitCode != 7 {
		t.Errorf("expected exit code 7, got %d", result.ExitCode)
	}
}

func TestExecuteSuccessOutput(t *testing.T) {
	result := execute(context.Background(), "echo hello", time.Second, os.Environ())
	if result.State != "success" {
		t.Fatalf("expected success, got %s (%s)", result.State, result.Error)
	}
	if strings.TrimSpace(result.Output) != "hello" {
		t.Errorf("expected captured output, got %q", result.Output)
	}
}
