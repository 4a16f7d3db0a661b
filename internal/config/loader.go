// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable names. All overrides share the GAZEGATE_ prefix.
const (
	EnvLogLevel          = "GAZEGATE_LOG_LEVEL"
	EnvListenAddr        = "GAZEGATE_LISTEN_ADDR"
	EnvRateLimit         = "GAZEGATE_RATE_LIMIT"
	EnvMaxSessions       = "GAZEGATE_MAX_SESSIONS"
	EnvGazePollInterval  = "GAZEGATE_GAZE_POLL_INTERVAL"
	EnvMotionInterval    = "GAZEGATE_MOTION_INTERVAL"
	EnvMotionThreshold   = "GAZEGATE_MOTION_THRESHOLD"
	EnvChallengeLength   = "GAZEGATE_CHALLENGE_LENGTH"
	EnvInferenceURL      = "GAZEGATE_INFERENCE_URL"
	EnvInferenceTimeout  = "GAZEGATE_INFERENCE_TIMEOUT"
	EnvInferenceMaxRPS   = "GAZEGATE_INFERENCE_MAX_RPS"
	EnvPlayerMainSrc     = "GAZEGATE_PLAYER_MAIN_SRC"
	EnvDemoMediaSrc      = "GAZEGATE_DEMO_MEDIA_SRC"
	EnvStorageDriver     = "GAZEGATE_STORAGE_DRIVER"
	EnvStorageDSN        = "GAZEGATE_STORAGE_DSN"
	EnvKafkaBrokers      = "GAZEGATE_KAFKA_BROKERS"
	EnvKafkaTopic        = "GAZEGATE_KAFKA_TOPIC"
	EnvTelemetryEnabled  = "GAZEGATE_OTEL_ENABLED"
	EnvTelemetryExporter = "GAZEGATE_OTEL_EXPORTER"
	EnvTelemetryEndpoint = "GAZEGATE_OTEL_ENDPOINT"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty path means ENV-only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the configuration file path (may be empty).
func (l *Loader) Path() string { return l.configPath }

// Load parses the file strictly, applies environment overrides and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg. Unknown fields are a fatal error.
func loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.API.ListenAddr = ParseString(EnvListenAddr, cfg.API.ListenAddr)
	cfg.API.RateLimit = ParseInt(EnvRateLimit, cfg.API.RateLimit)
	cfg.Sessions.Max = ParseInt(EnvMaxSessions, cfg.Sessions.Max)

	cfg.Gaze.PollInterval = ParseDuration(EnvGazePollInterval, cfg.Gaze.PollInterval)
	cfg.Motion.Interval = ParseDuration(EnvMotionInterval, cfg.Motion.Interval)
	cfg.Motion.Threshold = ParseInt(EnvMotionThreshold, cfg.Motion.Threshold)
	cfg.Challenge.Length = ParseInt(EnvChallengeLength, cfg.Challenge.Length)

	cfg.Inference.BaseURL = ParseString(EnvInferenceURL, cfg.Inference.BaseURL)
	cfg.Inference.Timeout = ParseDuration(EnvInferenceTimeout, cfg.Inference.Timeout)
	cfg.Inference.MaxRPS = ParseFloat(EnvInferenceMaxRPS, cfg.Inference.MaxRPS)

	cfg.Player.MainSrc = ParseString(EnvPlayerMainSrc, cfg.Player.MainSrc)
	cfg.Demo.MediaSrc = ParseString(EnvDemoMediaSrc, cfg.Demo.MediaSrc)

	cfg.Storage.Driver = ParseString(EnvStorageDriver, cfg.Storage.Driver)
	cfg.Storage.DSN = ParseString(EnvStorageDSN, cfg.Storage.DSN)
	cfg.Events.Kafka.Brokers = ParseList(EnvKafkaBrokers, cfg.Events.Kafka.Brokers)
	cfg.Events.Kafka.Topic = ParseString(EnvKafkaTopic, cfg.Events.Kafka.Topic)

	cfg.Telemetry.Enabled = ParseBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvTelemetryExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvTelemetryEndpoint, cfg.Telemetry.Endpoint)
}
