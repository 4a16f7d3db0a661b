// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/validate"
	"github.com/rs/zerolog"
)

// Validate checks the effective configuration. Ad break problems (duplicate id,
// negative trigger time) are rejected here, before any playback begins.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		v.AddError("log_level", fmt.Sprintf("unknown level %q", cfg.LogLevel), cfg.LogLevel)
	}

	v.NotEmpty("api.listen_addr", cfg.API.ListenAddr)
	v.Positive("api.rate_limit", cfg.API.RateLimit)
	v.PositiveDuration("api.rate_window", cfg.API.RateWindow)
	if cfg.API.MaxFrameBytes <= 0 {
		v.AddError("api.max_frame_bytes", "value must be positive", cfg.API.MaxFrameBytes)
	}
	v.Positive("api.max_frame_pixels", cfg.API.MaxFramePixels)
	v.PositiveDuration("api.shutdown_timeout", cfg.API.ShutdownTimeout)

	v.Positive("sessions.max", cfg.Sessions.Max)
	if cfg.Sessions.IdleTimeout < 0 {
		v.AddError("sessions.idle_timeout", "duration cannot be negative", cfg.Sessions.IdleTimeout)
	}

	validateDuration(v, "gaze.poll_interval", cfg.Gaze.PollInterval, 100*time.Millisecond)
	validateDuration(v, "motion.interval", cfg.Motion.Interval, 50*time.Millisecond)
	v.Range("motion.width", cfg.Motion.Width, 1, 256)
	v.Range("motion.height", cfg.Motion.Height, 1, 256)
	v.Positive("motion.threshold", cfg.Motion.Threshold)
	v.Range("challenge.length", cfg.Challenge.Length, 3, 8)

	v.URL("inference.base_url", cfg.Inference.BaseURL, []string{"http", "https"})
	v.PositiveDuration("inference.timeout", cfg.Inference.Timeout)
	v.NonNegative("inference.max_rps", cfg.Inference.MaxRPS)
	v.Positive("inference.breaker_threshold", cfg.Inference.BreakerThreshold)
	v.PositiveDuration("inference.breaker_reset", cfg.Inference.BreakerReset)

	if cfg.Player.MainSrc != "" {
		v.MediaURL("player.main_src", cfg.Player.MainSrc)
	}
	if cfg.Demo.MediaSrc != "" {
		v.MediaURL("demo.media_src", cfg.Demo.MediaSrc)
	}
	ValidateAdBreaks(v, cfg.Player.AdBreaks)

	v.OneOf("storage.driver", cfg.Storage.Driver,
		[]string{StorageMemory, StorageSQLite, StoragePostgres, StorageRedis, StorageBadger})
	if cfg.Storage.Driver != StorageMemory {
		v.NotEmpty("storage.dsn", cfg.Storage.DSN)
	}
	if len(cfg.Events.Kafka.Brokers) > 0 {
		v.NotEmpty("events.kafka.topic", cfg.Events.Kafka.Topic)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.sampling_rate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

// ValidateAdBreaks checks the ordered break list.
func ValidateAdBreaks(v *validate.Validator, breaks []AdBreak) {
	adbreak.ValidateInto(v, "player.ad_breaks", breaks)
}

func validateDuration(v *validate.Validator, field string, d, floor time.Duration) {
	if d < floor {
		v.AddError(field, fmt.Sprintf("duration must be at least %s, got %s", floor, d), d)
	}
}
