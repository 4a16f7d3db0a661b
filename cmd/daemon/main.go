// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command gazegate runs the attention-gated playback daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ManuGH/gazegate/internal/config"
	"github.com/ManuGH/gazegate/internal/daemon"
	"github.com/ManuGH/gazegate/internal/health"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "challenge":
			os.Exit(runChallengeCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		case "status":
			cmd := newStatusCmd()
			cmd.SetArgs(os.Args[2:])
			if err := cmd.Execute(); err != nil {
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	os.Exit(serve(strings.TrimSpace(*configPath)))
}

func serve(configPath string) int {
	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return 1
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: daemon.ServiceName,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", configPath).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, please verify configuration and permissions")
		return 1
	}

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Msg("starting gazegate")
	logger.Info().Msgf("→ Inference: %s (timeout %s)", maskURL(cfg.Inference.BaseURL), cfg.Inference.Timeout)
	logger.Info().Msgf("→ Storage: %s", cfg.Storage.Driver)
	logger.Info().Msgf("→ Sessions: max %d, idle timeout %s", cfg.Sessions.Max, cfg.Sessions.IdleTimeout)
	if cfg.API.RateLimit <= 0 {
		logger.Warn().Msg("→ Rate limiting: disabled")
	}

	holder := config.NewHolder(cfg, loader)
	rt, err := daemon.Bootstrap(ctx, holder)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "bootstrap.failed").Msg("failed to bootstrap runtime")
		return 1
	}

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg), daemon.Deps{
		Logger:     logger,
		APIHandler: rt.Server.Handler(),
	})
	if err != nil {
		_ = rt.Close(context.Background())
		logger.Error().Err(err).Str(xglog.FieldEvent, "manager.creation.failed").Msg("failed to create daemon manager")
		return 1
	}
	rt.RegisterShutdownHooks(mgr)

	app := daemon.NewApp(logger, mgr, rt)
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "manager.failed").Msg("daemon app failed")
		return 1
	}

	logger.Info().Msg("server exiting")
	return 0
}
