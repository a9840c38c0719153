package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusnet/rugengine/config"
	"github.com/nimbusnet/rugengine/engine"
	"github.com/nimbusnet/rugengine/logger"
	"github.com/nimbusnet/rugengine/transport"
)

// ServeCmd starts the dispatch engine as a long-running foreground process.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the router dispatch engine",
	Long: `Start the router dispatch engine in foreground mode.

The process will:
- Load layered configuration (system, user, project, environment)
- Open the configured debug-flag store (sqlite or directory backed)
- Start the bounded worker pool that reconciles router state
- Run until interrupted (Ctrl+C or SIGTERM), then stop the worker pool,
  discarding queued work, and exit

Note: this binary provides the scheduling and dispatch infrastructure only.
Router-specific reconciliation logic is a black box supplied by the
embedding application via a StateMachineFactory; without one registered,
routers are tracked but never reconciled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(cfg.Log.JSON, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		debugStore, err := openDebugStore(cfg)
		if err != nil {
			return fmt.Errorf("failed to open debug store: %w", err)
		}
		if closer, ok := debugStore.(interface{ Close() error }); ok {
			defer closer.Close()
		}
		cached := engine.NewCachedDebugStore(debugStore, time.Duration(cfg.DebugStore.CacheTTLMS)*time.Millisecond)

		eng := engine.NewEngine(cfg, engine.NoopStateMachineFactory(), cached)
		eng.Start()

		reloader := &configReloader{cached: cached, active: cfg}
		ingress := engine.NewIngress(eng, reloader)
		listener := transport.NewChannelListener(cfg.QueueWarningThreshold)

		if watchPath := config.ProjectConfigPath(); watchPath != "" {
			watcher, err := config.NewConfigWatcher(watchPath)
			if err != nil {
				logger.Warnw("failed to start config file watcher", "path", watchPath, "error", err.Error())
			} else {
				watcher.OnReload(func(next *config.Config) error { return reloader.apply(next) })
				watcher.Start()
				defer watcher.Stop()
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		runDone := make(chan error, 1)
		go func() { runDone <- transport.Run(ctx, listener, ingress) }()

		logger.Infow("rugengine started",
			"num_workers", cfg.NumWorkers,
			"debug_store_backend", cfg.DebugStore.Backend)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info("shutdown signal received, stopping")
		case err := <-runDone:
			if err != nil && err != context.Canceled {
				logger.Warnw("transport loop exited unexpectedly", "error", err.Error())
			}
		}

		cancel()
		listener.Close()

		if err := ingress.Shutdown(); err != nil {
			return fmt.Errorf("shutdown did not complete cleanly: %w", err)
		}
		logger.Info("rugengine stopped")
		return nil
	},
}

// configReloader services CONFIG_RELOAD by re-reading layered configuration
// and applying whatever the running engine can absorb without a restart.
// Worker-pool sizing and the debug store backend are fixed at Start() and
// are not touched here; a changed value there is logged, not applied.
type configReloader struct {
	mu     sync.Mutex
	cached *engine.CachedDebugStore
	active *config.Config
}

// Reload services the CONFIG_RELOAD command by re-reading layered
// configuration from scratch and applying it.
func (r *configReloader) Reload() error {
	config.Reset()
	next, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	return r.apply(next)
}

// apply updates whatever the running engine can absorb without a restart.
// Worker-pool sizing and the debug store backend are fixed at Start() and
// are not touched here; a changed value there is logged, not applied. Also
// used directly as the ConfigWatcher callback when the project config file
// changes on disk.
func (r *configReloader) apply(next *config.Config) error {
	r.mu.Lock()
	prev := r.active
	r.active = next
	r.mu.Unlock()

	r.cached.SetTTL(time.Duration(next.DebugStore.CacheTTLMS) * time.Millisecond)

	if next.NumWorkers != prev.NumWorkers {
		logger.Warnw("num_workers changed on reload but requires a restart to take effect",
			"previous", prev.NumWorkers, "requested", next.NumWorkers)
	}
	if next.DebugStore.Backend != prev.DebugStore.Backend {
		logger.Warnw("debug_store.backend changed on reload but requires a restart to take effect",
			"previous", prev.DebugStore.Backend, "requested", next.DebugStore.Backend)
	}

	logger.Infow("config reloaded", "debug_store_cache_ttl_ms", next.DebugStore.CacheTTLMS)
	return nil
}

func openDebugStore(cfg *config.Config) (engine.DebugStore, error) {
	switch cfg.DebugStore.Backend {
	case "directory":
		return engine.NewDirectoryDebugStore(cfg.IgnoredRouterDirectory)
	case "sqlite", "":
		return engine.NewSQLiteDebugStore(cfg.DebugStore.SQLitePath)
	default:
		return nil, fmt.Errorf("unrecognized debug_store.backend %q", cfg.DebugStore.Backend)
	}
}
