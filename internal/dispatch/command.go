// internal/dispatch/command.go
package dispatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/colebrumley/hookbridge/internal/debuglog"
	"github.com/colebrumley/hookbridge/internal/event"
	"github.com/colebrumley/hookbridge/internal/history"
	"github.com/colebrumley/hookbridge/internal/manifest"
	"github.com/colebrumley/hookbridge/internal/security"
)

// Result represents the outcome of one hook command execution.
type Result struct {
	State    string // success, failure, timeout
	Output   string
	Error    string
	ExitCode int
	Duration time.Duration
}

// Environment variables every hook command receives, identifying the
// triggering event and its origin.
const (
	EnvEvent       = "CODEX_HOOK_EVENT"
	EnvRawType     = "CODEX_HOOK_RAW_TYPE"
	EnvMatcherText = "CODEX_HOOK_MATCHER_TEXT"
	EnvReason      = "CODEX_HOOK_REASON"
	EnvCallID      = "CODEX_HOOK_CALL_ID"
	EnvPluginRoot  = "CODEX_HOOK_PLUGIN_ROOT"
	EnvProjectRoot = "CODEX_HOOK_PROJECT_ROOT"
)

// runCommand executes one hook command in a shell with the event's
// context in the environment, killing it at its timeout. The outcome is
// traced and recorded; it is never propagated.
func (d *Dispatcher) runCommand(ctx context.Context, src manifest.HookSource, rule manifest.EventRule, cmd manifest.HookCommand, ev *event.Event, matcherText, sessionFile string) {
	timeout := d.defaultTimeout
	if cmd.TimeoutSec > 0 {
		timeout = time.Duration(cmd.TimeoutSec * float64(time.Second))
	}

	d.trace.Log(debuglog.KindCommandStart, map[string]any{
		"source":  src.Name,
		"event":   rule.EventName,
		"command": cmd.Command,
	})

	startedAt := time.Now()
	result := execute(ctx, cmd.Command, timeout, d.hookEnv(rule, ev, src, matcherText))
	result.Output = security.ScrubOutput(result.Output)

	logger := d.logger.With("source", src.Name, "event", rule.EventName)
	if result.State == "success" {
		logger.Debug("hook command finished", "duration", result.Duration)
	} else {
		logger.Warn("hook command failed",
			"state", result.State,
			"exit_code", result.ExitCode,
			"error", result.Error,
		)
	}

	d.trace.Log(debuglog.KindCommandFinish, map[string]any{
		"source":      src.Name,
		"event":       rule.EventName,
		"command":     cmd.Command,
		"state":       result.State,
		"exit_code":   result.ExitCode,
		"duration_ms": result.Duration.Milliseconds(),
	})

	if d.hist != nil {
		rec := history.DispatchRecord{
			SourceID:    src.ID,
			SourceName:  src.Name,
			EventName:   rule.EventName,
			RawType:     ev.RawType,
			CallID:      ev.CallID(),
			Command:     cmd.Command,
			State:       result.State,
			StartedAt:   startedAt,
			FinishedAt:  startedAt.Add(result.Duration),
			DurationMs:  result.Duration.Milliseconds(),
			ExitCode:    result.ExitCode,
			Error:       result.Error,
			Output:      result.Output,
			SessionFile: sessionFile,
		}
		if _, err := d.hist.Record(rec); err != nil {
			logger.Warn("failed to record dispatch", "error", err)
		}
	}
}

// hookEnv extends the host environment with the fixed hook context
// variables. Values that originate in the session log pass through the
// sanitizer; they carry model-generated text.
func (d *Dispatcher) hookEnv(rule manifest.EventRule, ev *event.Event, src manifest.HookSource, matcherText string) []string {
	env := os.Environ()
	env = append(env,
		EnvEvent+"="+rule.EventName,
		EnvRawType+"="+ev.RawType,
		EnvMatcherText+"="+security.SanitizeEnvValue(matcherText),
		EnvReason+"="+security.SanitizeEnvValue(ev.Reason()),
		EnvCallID+"="+security.SanitizeEnvValue(ev.CallID()),
		EnvPluginRoot+"="+src.RootPath,
		EnvProjectRoot+"="+d.projectRoot,
	)
	return env
}

// execute runs command under sh -c with the given timeout and
// environment.
func execute(ctx context.Context, command string, timeout time.Duration, env []string) Result {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Env = env

	start := time.Now()
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return Result{
				State:    "timeout",
				Error:    fmt.Sprintf("killed after %s", timeout),
				Output:   string(output),
				ExitCode: -1,
				Duration: duration,
			}
		}
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return Result{
			State:    "failure",
			Error:    err.Error(),
			Output:   string(output),
			ExitCode: exitCode,
			Duration: duration,
		}
	}

	return Result{
		State:    "success",
		Output:   string(output),
		Duration: duration,
	}
}
