// internal/bridge/bridge.go
package bridge

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/colebrumley/hookbridge/internal/config"
	"github.com/colebrumley/hookbridge/internal/debuglog"
	"github.com/colebrumley/hookbridge/internal/dedup"
	"github.com/colebrumley/hookbridge/internal/dispatch"
	"github.com/colebrumley/hookbridge/internal/history"
	"github.com/colebrumley/hookbridge/internal/manifest"
	"github.com/colebrumley/hookbridge/internal/security"
	"github.com/colebrumley/hookbridge/internal/session"
)

// Bridge owns one run of the event bridge: the tailing state, the dedup
// cache, the dispatcher, and the trace logger. Everything here is used
// from a single run loop; cross-process coordination happens only
// through the lock file and the debug log.
type Bridge struct {
	cfg        *config.Bridge
	man        *manifest.Manifest
	dispatcher *dispatch.Dispatcher
	tailer     *session.Tailer
	cache      *dedup.Cache
	logger     *slog.Logger
	trace      *debuglog.Logger
	hist       *history.DB
	runID      string

	projectRoot   string
	sinceEpochSec int64
	emitStop      bool
}

// Options adjust a single bridge run.
type Options struct {
	// SinceEpochSec is the replay floor: events older than this are not
	// dispatched, and session files unmodified since then are skipped.
	// Zero means no floor in once mode; watch mode fills it with the
	// run's start time so history is never replayed.
	SinceEpochSec int64

	// EmitStop synthesizes a final terminal event after the once-mode
	// pass, so session-end hooks fire even when the log lacks one.
	EmitStop bool

	// DisableTrace suppresses the NDJSON debug log.
	DisableTrace bool

	// DisableHistory suppresses the sqlite dispatch history.
	DisableHistory bool
}

// New assembles a Bridge from configuration. The manifest is loaded
// here, once; it is not re-read mid-run. A history open failure is
// only a warning, dispatching continues without recording.
func New(cfg *config.Bridge, logger *slog.Logger, opts Options) *Bridge {
	runID := uuid.NewString()

	var trace *debuglog.Logger
	if !opts.DisableTrace {
		trace = debuglog.New(cfg.Paths.DebugLog, runID)
	}

	var hist *history.DB
	if cfg.HistoryEnabled() && !opts.DisableHistory {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("failed to open history database, dispatches will not be recorded", "error", err)
		} else {
			hist = db
		}
	}

	if err := security.CheckManifestPermissions(cfg.Paths.Manifest); err != nil {
		logger.Warn("manifest permissions", "error", err)
	}
	man := manifest.Load(cfg.Paths.Manifest)
	for _, w := range man.Validate() {
		logger.Warn("manifest: " + w)
	}

	projectRoot := man.ProjectRoot
	if cfg.Paths.ProjectRoot != "" {
		projectRoot = cfg.Paths.ProjectRoot
	}
	man.ProjectRoot = projectRoot

	timeout := time.Duration(cfg.Hooks.DefaultTimeoutSec * float64(time.Second))

	return &Bridge{
		cfg:           cfg,
		man:           man,
		dispatcher:    dispatch.New(man, timeout, logger, trace, hist),
		tailer:        session.NewTailer(),
		cache:         dedup.NewCache(time.Duration(cfg.Dedup.TTLMs)*time.Millisecond, cfg.Dedup.Capacity),
		logger:        logger,
		trace:         trace,
		hist:          hist,
		runID:         runID,
		projectRoot:   projectRoot,
		sinceEpochSec: opts.SinceEpochSec,
		emitStop:      opts.EmitStop,
	}
}

// Close releases the bridge's long-lived resources.
func (b *Bridge) Close() {
	if b.hist != nil {
		b.hist.Close()
	}
	b.trace.Close()
}
