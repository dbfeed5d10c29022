// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/colebrumley/hookbridge/internal/debuglog"
	"github.com/colebrumley/hookbridge/internal/event"
	"github.com/colebrumley/hookbridge/internal/history"
	"github.com/colebrumley/hookbridge/internal/manifest"
)

// Dispatcher evaluates manifest rules against normalized events and runs
// the matching hook commands synchronously, one at a time. A slow hook
// back-pressures the caller's poll loop by design; there is no queueing.
type Dispatcher struct {
	sources        []manifest.HookSource
	projectRoot    string
	defaultTimeout time.Duration
	logger         *slog.Logger
	trace          *debuglog.Logger
	hist           *history.DB // optional

	// Compiled matchers, keyed by pattern. A nil entry marks a pattern
	// that failed to compile: manifest regexes are untrusted, and a bad
	// one is a permanent non-match rather than an error.
	matchers map[string]*regexp.Regexp
}

// New creates a Dispatcher over the manifest's sources in dispatch
// order (plugins first, then top-level). trace and hist may be nil.
func New(m *manifest.Manifest, defaultTimeout time.Duration, logger *slog.Logger, trace *debuglog.Logger, hist *history.DB) *Dispatcher {
	if defaultTimeout <= 0 {
		defaultTimeout = manifest.DefaultTimeoutSec * time.Second
	}
	return &Dispatcher{
		sources:        m.Sources(),
		projectRoot:    m.ProjectRoot,
		defaultTimeout: defaultTimeout,
		logger:         logger,
		trace:          trace,
		hist:           hist,
		matchers:       make(map[string]*regexp.Regexp),
	}
}

// Dispatch runs every hook command whose rule matches the event and
// returns how many commands were executed. Command failures are logged
// and recorded but never abort the remaining commands: hooks are
// fire-and-continue.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.Event, sessionFile string) int {
	names := event.ExpandNames(ev.RawType)
	matcherText := event.MatcherText(ev)

	ran := 0
	for _, src := range d.sources {
		for _, rule := range src.Rules {
			if !containsName(names, rule.EventName) {
				continue
			}
			if !d.matcherAllows(rule.Matcher, matcherText) {
				continue
			}
			for _, cmd := range rule.Commands {
				d.runCommand(ctx, src, rule, cmd, ev, matcherText, sessionFile)
				ran++
			}
		}
	}
	return ran
}

// matcherAllows applies a rule's matcher regex to the synthesized
// matcher text. No matcher means always match; an invalid regex fails
// closed.
func (d *Dispatcher) matcherAllows(pattern, text string) bool {
	if pattern == "" {
		return true
	}

	re, seen := d.matchers[pattern]
	if !seen {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			d.logger.Warn("invalid matcher regex, treating as non-match",
				"pattern", pattern, "error", err)
			compiled = nil
		}
		re = compiled
		d.matchers[pattern] = re
	}

	return re != nil && re.MatchString(text)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
