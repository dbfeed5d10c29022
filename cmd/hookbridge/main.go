// cmd/hookbridge/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/colebrumley/hookbridge/internal/bridge"
	"github.com/colebrumley/hookbridge/internal/config"
	"github.com/colebrumley/hookbridge/internal/logging"
)

func main() {
	var (
		watch       = flag.Bool("watch", false, "run continuously, polling session logs until signalled")
		emitStop    = flag.Bool("emit-stop", false, "dispatch a synthetic terminal event after a once-mode pass")
		root        = flag.String("root", "", "session log root directory (overrides config)")
		projectRoot = flag.String("project-root", "", "project root in scope (overrides manifest)")
		manifest    = flag.String("manifest", "", "hook manifest JSON path (overrides config)")
		since       = flag.Int64("since", 0, "replay floor in epoch seconds; older events are not dispatched")
		pollMs      = flag.Int("poll-ms", 0, "watch poll cadence in milliseconds (minimum 200)")
		configPath  = flag.String("config", "", "bridge config YAML path (default $HOOKBRIDGE_CONFIG)")
		verbose     = flag.Bool("verbose", false, "log at debug level")
		noDebugLog  = flag.Bool("no-debug-log", false, "disable the NDJSON debug trace")
		noHistory   = flag.Bool("no-history", false, "disable the dispatch history database")
	)
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("HOOKBRIDGE_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookbridge: %v\n", err)
		os.Exit(1)
	}

	if *root != "" {
		cfg.Paths.SessionRoot = *root
	}
	if *projectRoot != "" {
		cfg.Paths.ProjectRoot = *projectRoot
	}
	if *manifest != "" {
		cfg.Paths.Manifest = *manifest
	}
	if *pollMs != 0 {
		if *pollMs < config.MinPollMs {
			fmt.Fprintf(os.Stderr, "hookbridge: --poll-ms must be at least %d\n", config.MinPollMs)
			os.Exit(1)
		}
		cfg.Watch.PollMs = *pollMs
	}

	level := cfg.Logging.Level
	if *verbose {
		level = "debug"
	}
	logger := logging.NewLogger(cfg.Logging.Format, level, os.Stderr)

	b := bridge.New(cfg, logger, bridge.Options{
		SinceEpochSec:  *since,
		EmitStop:       *emitStop,
		DisableTrace:   *noDebugLog,
		DisableHistory: *noHistory,
	})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *watch {
		err = b.RunWatch(ctx)
	} else {
		err = b.RunOnce(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookbridge: %v\n", err)
		os.Exit(1)
	}
}
