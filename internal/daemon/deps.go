// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"net/http"
	"time"

	"github.com/ManuGH/gazegate/internal/config"
	"github.com/rs/zerolog"
)

// Server timeouts that are not exposed in the configuration file.
const (
	DefaultReadTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultIdleTimeout    = 120 * time.Second
	DefaultMaxHeaderBytes = 1 << 20
)

// ServerConfig holds the HTTP server settings of the Manager.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// ServerConfigFrom derives server settings from the application config.
// WriteTimeout always leaves room for one calibration round trip.
func ServerConfigFrom(cfg config.AppConfig) ServerConfig {
	write := DefaultWriteTimeout
	if t := 2 * cfg.Inference.Timeout; t > write {
		write = t
	}
	shutdown := cfg.API.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	return ServerConfig{
		ListenAddr:      cfg.API.ListenAddr,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    write,
		IdleTimeout:     DefaultIdleTimeout,
		MaxHeaderBytes:  DefaultMaxHeaderBytes,
		ShutdownTimeout: shutdown,
	}
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
