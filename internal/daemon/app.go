// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/gazegate/internal/config"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/rs/zerolog"
)

// DefaultJanitorInterval is how often idle sessions are swept.
const DefaultJanitorInterval = 30 * time.Second

// App owns the long-lived runtime lifecycle (config watcher, reload wiring,
// session janitor) and delegates server management to Manager.
type App struct {
	logger          zerolog.Logger
	manager         Manager
	runtime         *Runtime
	reloadSignal    os.Signal
	janitorInterval time.Duration
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, rt *Runtime) *App {
	return &App{
		logger:          logger,
		manager:         manager,
		runtime:         rt,
		reloadSignal:    syscall.SIGHUP,
		janitorInterval: DefaultJanitorInterval,
	}
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	var holder *config.Holder
	if a.runtime != nil {
		holder = a.runtime.Holder
	}

	// The watcher is best-effort: startup does not fail without it.
	if holder != nil {
		if err := holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer holder.Stop()

		applyCh := make(chan config.AppConfig, 1)
		holder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if holder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := holder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.runtime != nil && a.runtime.Sessions != nil {
		g.Go(func() error {
			a.runtime.Sessions.Run(ctx, a.janitorInterval)
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// apply hot-applies the settings that running services can pick up.
// Session settings are read by the factory on every create.
func (a *App) apply(cfg config.AppConfig) {
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: ServiceName,
		Version: cfg.Version,
	})
	a.logger.Info().
		Str(xglog.FieldEvent, "config.applied").
		Str("log_level", cfg.LogLevel).
		Msg("applied reloaded configuration")
}
