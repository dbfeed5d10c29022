// internal/reaper/reaper.go
package reaper

import (
	"log/slog"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/colebrumley/hookbridge/internal/debuglog"
)

// RecencyWindow bounds how old a watcher's last debug log activity may
// be before the reaper assumes the process is long dead. Signalling
// beyond this window risks hitting an unrelated process that recycled
// the PID.
const RecencyWindow = 6 * time.Hour

// Target identifies what a watcher invocation is pinned to. Two
// watchers compete only when both root and project scope match.
type Target struct {
	Root        string
	ProjectRoot string
}

// watcherState is the replayed per-PID view of the debug log.
type watcherState struct {
	mode        string
	root        string
	projectRoot string
	stopped     bool
	lastSeen    time.Time
}

// Reap scans the debug log tail for other live watcher processes pinned
// to the same target and sends them SIGTERM. It runs once, before lock
// acquisition. This is best-effort convergence for overlapping launcher
// invocations; the watch lock remains the strict exclusion guarantee.
// Failures to signal are logged, never fatal.
func Reap(debugLogPath string, target Target, logger *slog.Logger, trace *debuglog.Logger) int {
	records, err := debuglog.ReadTail(debugLogPath)
	if err != nil {
		logger.Warn("could not read debug log for reaping", "error", err)
		return 0
	}

	reaped := 0
	for _, pid := range candidates(records, target, os.Getpid(), time.Now()) {
		logger.Info("terminating competing watcher", "pid", pid)
		err := signalTerm(pid)
		trace.Log(debuglog.KindReaperSignal, map[string]any{
			"target_pid": pid,
			"ok":         err == nil,
		})
		if err != nil {
			logger.Warn("failed to signal competing watcher", "pid", pid, "error", err)
			continue
		}
		reaped++
	}
	return reaped
}

// candidates replays bridge-start/bridge-stop transitions in record
// order and returns the PIDs of watchers that look alive and pinned to
// the same target: started in watch mode, never stopped, matching root
// and project scope, with activity inside the recency window.
func candidates(records []debuglog.TailRecord, target Target, self int, now time.Time) []int {
	states := make(map[int]*watcherState)

	for _, rec := range records {
		if rec.PID == 0 {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, rec.TS)
		if err != nil {
			continue
		}

		st := states[rec.PID]
		switch rec.Kind {
		case debuglog.KindStart:
			states[rec.PID] = &watcherState{
				mode:        rec.Mode,
				root:        rec.Root,
				projectRoot: rec.ProjectRoot,
				lastSeen:    ts,
			}
		case debuglog.KindStop:
			if st != nil {
				st.stopped = true
				st.lastSeen = ts
			}
		default:
			if st != nil {
				st.lastSeen = ts
			}
		}
	}

	cutoff := now.Add(-RecencyWindow)
	var pids []int
	for pid, st := range states {
		if pid == self || st.stopped || st.mode != "watch" {
			continue
		}
		if st.root != target.Root || st.projectRoot != target.ProjectRoot {
			continue
		}
		if st.lastSeen.Before(cutoff) {
			continue
		}
		pids = append(pids, pid)
	}

	sort.Ints(pids)
	return pids
}

func signalTerm(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(syscall.SIGTERM)
}
