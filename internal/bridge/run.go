// internal/bridge/run.go
package bridge

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/colebrumley/hookbridge/internal/debuglog"
	"github.com/colebrumley/hookbridge/internal/event"
	"github.com/colebrumley/hookbridge/internal/reaper"
	"github.com/colebrumley/hookbridge/internal/session"
	"github.com/colebrumley/hookbridge/internal/watchlock"
)

// RunOnce performs a single locate+tail+dispatch pass over the session
// logs and exits. With EmitStop set, a synthetic terminal event is
// dispatched after the pass.
func (b *Bridge) RunOnce(ctx context.Context) error {
	b.trace.Log(debuglog.KindStart, b.startFields("once"))
	defer b.trace.Log(debuglog.KindStop, map[string]any{"mode": "once"})

	b.pass(ctx)

	if b.emitStop {
		b.dispatchSyntheticStop(ctx)
	}
	return nil
}

// RunWatch enters continuous-watch mode: reap competing watchers,
// acquire the exclusive lock, then poll until ctx is cancelled. One
// final pass always runs after cancellation so tail events written
// during shutdown are not lost; the lock is released regardless of how
// the loop exits.
func (b *Bridge) RunWatch(ctx context.Context) error {
	b.trace.Log(debuglog.KindStart, b.startFields("watch"))
	defer b.trace.Log(debuglog.KindStop, map[string]any{"mode": "watch"})

	reaper.Reap(b.cfg.Paths.DebugLog, reaper.Target{
		Root:        b.cfg.Paths.SessionRoot,
		ProjectRoot: b.projectRoot,
	}, b.logger, b.trace)

	// Remember whether a dead process left a descriptor behind, so the
	// recovery can be traced after Acquire silently replaces it.
	staleOwner := 0
	if prev, live := watchlock.Holder(b.cfg.Paths.Lock); prev != nil && !live {
		staleOwner = prev.PID
	}

	lock, err := watchlock.Acquire(b.cfg.Paths.Lock)
	if err != nil {
		if errors.Is(err, watchlock.ErrLocked) {
			b.trace.Log(debuglog.KindLockBusy, map[string]any{"lock": b.cfg.Paths.Lock})
			b.logger.Info("watch lock held by another process, exiting", "lock", b.cfg.Paths.Lock)
			return nil
		}
		return err
	}
	if staleOwner != 0 {
		b.trace.Log(debuglog.KindLockStaleRemoved, map[string]any{"old_pid": staleOwner})
		b.logger.Warn("recovered stale watch lock", "old_pid", staleOwner)
	}
	b.trace.Log(debuglog.KindLockAcquired, map[string]any{"lock": b.cfg.Paths.Lock})

	defer func() {
		b.trace.Log(debuglog.KindCleanupStart, nil)
		if err := lock.Release(); err != nil {
			b.logger.Warn("failed to release watch lock", "error", err)
		} else {
			b.trace.Log(debuglog.KindLockReleased, map[string]any{"lock": b.cfg.Paths.Lock})
		}
		b.trace.Log(debuglog.KindCleanupDone, nil)
	}()

	// Watch runs never replay history: unless the caller set an explicit
	// replay floor, only events from now on are acted on. Files are still
	// read from byte zero; filtering is temporal, not structural.
	if b.sinceEpochSec == 0 {
		b.sinceEpochSec = time.Now().Unix()
	}
	for _, path := range session.Locate(b.cfg.Paths.SessionRoot, 0) {
		b.tailer.PrimeAtZero(path)
	}

	stopMaintenance := b.startMaintenance()
	defer stopMaintenance()

	watcher := b.startNotify()
	if watcher != nil {
		defer watcher.Close()
	}

	b.logger.Info("watching session logs",
		"root", b.cfg.Paths.SessionRoot,
		"poll_ms", b.cfg.Watch.PollMs,
		"rules", b.man.RuleCount(),
	)

	interval := time.Duration(b.cfg.Watch.PollMs) * time.Millisecond
	for ctx.Err() == nil {
		b.pass(ctx)
		b.sleep(ctx, interval, watcher)
	}

	// Final pass with a fresh context: the loop's context is already
	// cancelled and would kill hook commands immediately.
	finalCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	b.pass(finalCtx)

	return nil
}

// pass runs one locate+tail+dispatch sweep.
func (b *Bridge) pass(ctx context.Context) {
	for _, path := range session.Locate(b.cfg.Paths.SessionRoot, b.sinceEpochSec) {
		lines, err := b.tailer.Poll(path)
		if err != nil {
			b.logger.Warn("failed to tail session log", "file", path, "error", err)
			continue
		}
		for _, line := range lines {
			b.handleLine(ctx, path, line)
		}
	}
}

// handleLine normalizes one raw log line and dispatches the resulting
// event, subject to the replay floor and the dedup gate.
func (b *Bridge) handleLine(ctx context.Context, path, line string) {
	ev, ok := event.Normalize(line)
	if !ok {
		return
	}

	// Events older than the replay floor are filtered here, never by
	// skipping bytes. Records with no parseable timestamp always pass.
	if b.sinceEpochSec > 0 {
		if ts, ok := ev.TimestampSec(); ok && ts < b.sinceEpochSec {
			return
		}
	}

	if b.cache.Seen(line) {
		b.trace.Log(debuglog.KindEventDuplicate, map[string]any{
			"raw_type": ev.RawType,
			"file":     filepath.Base(path),
		})
		return
	}

	b.trace.Log(debuglog.KindEventReceived, map[string]any{
		"raw_type": ev.RawType,
		"file":     filepath.Base(path),
	})

	ran := b.dispatcher.Dispatch(ctx, ev, path)
	if ran > 0 {
		b.logger.Debug("dispatched hooks", "raw_type", ev.RawType, "commands", ran)
	}
}

// dispatchSyntheticStop fabricates a terminal task_complete event and
// dispatches it, for once-mode callers that need session-end hooks to
// fire unconditionally.
func (b *Bridge) dispatchSyntheticStop(ctx context.Context) {
	now := time.Now()
	ev := &event.Event{
		RawType: event.RawTaskComplete,
		Payload: map[string]any{
			"type":      event.RawTaskComplete,
			"synthetic": true,
		},
		Timestamp: &now,
	}
	b.trace.Log(debuglog.KindEventReceived, map[string]any{
		"raw_type":  ev.RawType,
		"synthetic": true,
	})
	b.dispatcher.Dispatch(ctx, ev, "")
}

// sleep waits out the poll interval, returning early on cancellation or
// on filesystem activity under the session root. Early wakes only bring
// the next pass forward; every pass does identical work.
func (b *Bridge) sleep(ctx context.Context, interval time.Duration, watcher *fsnotify.Watcher) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	if watcher == nil {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		return
	}

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-watcher.Events:
	case <-watcher.Errors:
	}
}

// startNotify sets up the optional fsnotify wake accelerator over the
// session root and its date subdirectories. Failure to watch is not an
// error; polling alone satisfies the cadence contract.
func (b *Bridge) startNotify() *fsnotify.Watcher {
	if !b.cfg.NotifyEnabled() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.logger.Warn("could not create session watcher, relying on polling", "error", err)
		return nil
	}

	if err := watcher.Add(b.cfg.Paths.SessionRoot); err != nil {
		b.logger.Debug("could not watch session root", "error", err)
	}
	for _, path := range session.Locate(b.cfg.Paths.SessionRoot, 0) {
		watcher.Add(filepath.Dir(path))
	}
	return watcher
}

// startMaintenance schedules the retention upkeep that the watch loop
// itself must not spend time on: pruning old dispatch history. Runs
// once at startup, then on the configured cron schedule. Returns a stop
// function.
func (b *Bridge) startMaintenance() func() {
	if b.hist == nil {
		return func() {}
	}

	prune := func() {
		if deleted, err := b.hist.Cleanup(b.cfg.History.RetentionDays); err != nil {
			b.logger.Warn("history cleanup failed", "error", err)
		} else if deleted > 0 {
			b.logger.Info("pruned old dispatch records", "deleted", deleted)
		}
	}
	prune()

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(b.cfg.Watch.Maintenance, prune); err != nil {
		b.logger.Warn("invalid maintenance schedule", "schedule", b.cfg.Watch.Maintenance, "error", err)
		return func() {}
	}
	c.Start()
	return func() { c.Stop() }
}

func (b *Bridge) startFields(mode string) map[string]any {
	return map[string]any{
		"mode":         mode,
		"root":         b.cfg.Paths.SessionRoot,
		"project_root": b.projectRoot,
	}
}
