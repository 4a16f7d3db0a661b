// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the gazegate services together and owns their
// lifecycle: bootstrapping, serving, reloading and graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/gazegate/internal/api"
	"github.com/ManuGH/gazegate/internal/api/middleware"
	"github.com/ManuGH/gazegate/internal/bus"
	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/challenge"
	"github.com/ManuGH/gazegate/internal/config"
	"github.com/ManuGH/gazegate/internal/controller"
	"github.com/ManuGH/gazegate/internal/health"
	"github.com/ManuGH/gazegate/internal/impressions"
	"github.com/ManuGH/gazegate/internal/inference"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/motion"
	"github.com/ManuGH/gazegate/internal/telemetry"
	"github.com/rs/zerolog"
)

// ServiceName identifies the daemon in logs and traces.
const ServiceName = "gazegate"

// notificationBuffer is the per-subscriber depth of the shared bus.
const notificationBuffer = 32

// Runtime bundles the long-lived services behind the API.
type Runtime struct {
	Holder    *config.Holder
	Recorder  *impressions.Recorder
	Inference *inference.Client
	Bus       *bus.MemoryBus
	Sessions  *api.Registry
	Health    *health.Manager
	Server    *api.Server
	Telemetry *telemetry.Provider

	logger zerolog.Logger
}

// Bootstrap builds every service from the current configuration. On error
// the services built so far are released.
func Bootstrap(ctx context.Context, holder *config.Holder) (rt *Runtime, err error) {
	if holder == nil {
		return nil, ErrMissingConfig
	}
	cfg := holder.Get()
	rt = &Runtime{Holder: holder, logger: xglog.WithComponent("daemon")}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	rt.Telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	if cfg.Telemetry.Enabled {
		rt.logger.Info().
			Str("endpoint", cfg.Telemetry.Endpoint).
			Float64("sampling_rate", cfg.Telemetry.SamplingRate).
			Msg("telemetry initialized")
	}

	store, err := impressions.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open impression store: %w", err)
	}
	var publisher impressions.Publisher
	if len(cfg.Events.Kafka.Brokers) > 0 {
		publisher = impressions.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic)
	}
	rt.Recorder = impressions.NewRecorder(store, publisher, xglog.Base())

	rt.Inference, err = inference.NewClient(inference.ClientConfig{
		BaseURL:          cfg.Inference.BaseURL,
		Timeout:          cfg.Inference.Timeout,
		MaxRPS:           cfg.Inference.MaxRPS,
		Burst:            cfg.Inference.Burst,
		BreakerThreshold: cfg.Inference.BreakerThreshold,
		BreakerReset:     cfg.Inference.BreakerReset,
	})
	if err != nil {
		return nil, err
	}

	rt.Bus = bus.NewMemoryBus(notificationBuffer)
	rt.Sessions = api.NewRegistry(rt.sessionFactory(), cfg.Sessions.Max, cfg.Sessions.IdleTimeout, xglog.Base(),
		api.WithDeviceOptions(camera.WithMaxPixels(cfg.API.MaxFramePixels)))

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewPingChecker("impression_store", rt.Recorder, 2*time.Second))
	rt.Health.RegisterChecker(health.NewBreakerChecker("inference", rt.Inference.BreakerState))
	rt.Health.RegisterChecker(health.NewFuncChecker("sessions", sessionsCheck(rt.Sessions)))

	rt.Server = api.NewServer(api.Config{
		MaxFrameBytes: cfg.API.MaxFrameBytes,
		Stack:         stackConfig(cfg),
	}, rt.Sessions, rt.Recorder, rt.Health)

	rt.logger.Info().
		Str("storage", cfg.Storage.Driver).
		Bool("kafka", publisher != nil).
		Str("inference", cfg.Inference.BaseURL).
		Int("max_sessions", cfg.Sessions.Max).
		Msg("runtime bootstrapped")
	return rt, nil
}

// sessionFactory reads the configuration per session, so reloaded settings
// apply to sessions created afterwards.
func (rt *Runtime) sessionFactory() api.Factory {
	return func(variant controller.Variant, device *camera.PushDevice) (*controller.Controller, error) {
		cfg := rt.Holder.Get()
		deps := controller.Deps{
			Device:     device,
			Capability: rt.Inference,
			Challenges: challenge.NewGenerator(challenge.WithLength(cfg.Challenge.Length)),
			Bus:        rt.Bus,
			Recorder:   rt.Recorder,
			Logger:     xglog.Base(),
		}
		opts := controller.Options{
			GazeInterval:   cfg.Gaze.PollInterval,
			MotionInterval: cfg.Motion.Interval,
			Motion: motion.Config{
				Width:     cfg.Motion.Width,
				Height:    cfg.Motion.Height,
				Threshold: cfg.Motion.Threshold,
			},
		}
		switch variant {
		case controller.VariantPlayer:
			return controller.NewPlayer(deps, cfg.Player.MainSrc, cfg.Player.AdBreaks, opts)
		case controller.VariantDemo:
			return controller.NewDemo(deps, cfg.Demo.MediaSrc, opts)
		default:
			return nil, controller.ErrNotSupported
		}
	}
}

func sessionsCheck(reg *api.Registry) func(context.Context) health.CheckResult {
	return func(context.Context) health.CheckResult {
		st := reg.Stats()
		msg := fmt.Sprintf("%d active", st.Active)
		if st.Max > 0 && st.Active >= st.Max {
			return health.CheckResult{Status: health.StatusDegraded, Message: msg + ", limit reached"}
		}
		return health.CheckResult{Status: health.StatusHealthy, Message: msg}
	}
}

func stackConfig(cfg config.AppConfig) middleware.StackConfig {
	sc := middleware.StackConfig{
		EnableCORS:            true,
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		EnableLogging:         true,
		RateLimit:             cfg.API.RateLimit,
		RateWindow:            cfg.API.RateWindow,
	}
	if cfg.Telemetry.Enabled {
		sc.TracingService = ServiceName
	}
	return sc
}

// RegisterShutdownHooks hands the runtime's teardown to m. Hooks run LIFO:
// sessions close first so their final impressions reach the store.
func (rt *Runtime) RegisterShutdownHooks(m Manager) {
	m.RegisterShutdownHook("telemetry", func(ctx context.Context) error {
		return rt.Telemetry.Shutdown(ctx)
	})
	m.RegisterShutdownHook("impressions", func(context.Context) error {
		return rt.Recorder.Close()
	})
	m.RegisterShutdownHook("bus", func(context.Context) error {
		rt.Bus.Close()
		return nil
	})
	m.RegisterShutdownHook("sessions", func(context.Context) error {
		rt.Sessions.Shutdown()
		return nil
	})
}

// Close releases whatever Bootstrap built. It is used when no Manager owns
// the runtime yet.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Sessions != nil {
		rt.Sessions.Shutdown()
	}
	if rt.Bus != nil {
		rt.Bus.Close()
	}
	if rt.Recorder != nil {
		if err := rt.Recorder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.Telemetry != nil {
		if err := rt.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("runtime close: %w", errors.Join(errs...))
	}
	return nil
}

// WaitForShutdown returns a context cancelled on SIGINT or SIGTERM.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
