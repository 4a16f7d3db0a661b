// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads, validates and hot-reloads the gazegate daemon configuration.
package config

import (
	"time"

	"github.com/ManuGH/gazegate/internal/adbreak"
)

// Storage drivers accepted by storage.driver.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageBadger   = "badger"
)

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version   string          `yaml:"-"`
	LogLevel  string          `yaml:"log_level"`
	API       APIConfig       `yaml:"api"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Gaze      GazeConfig      `yaml:"gaze"`
	Motion    MotionConfig    `yaml:"motion"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Inference InferenceConfig `yaml:"inference"`
	Player    PlayerConfig    `yaml:"player"`
	Demo      DemoConfig      `yaml:"demo"`
	Storage   StorageConfig   `yaml:"storage"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type APIConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
	MaxFrameBytes   int64         `yaml:"max_frame_bytes"`
	MaxFramePixels  int           `yaml:"max_frame_pixels"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SessionsConfig struct {
	Max         int           `yaml:"max"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type GazeConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type MotionConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	Threshold int           `yaml:"threshold"`
}

type ChallengeConfig struct {
	Length int `yaml:"length"`
}

type InferenceConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRPS           float64       `yaml:"max_rps"`
	Burst            int           `yaml:"burst"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// AdBreak is one scheduled insertion point on the primary timeline.
type AdBreak = adbreak.Config

type PlayerConfig struct {
	MainSrc  string    `yaml:"main_src"`
	AdBreaks []AdBreak `yaml:"ad_breaks"`
}

type DemoConfig struct {
	MediaSrc string `yaml:"media_src"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		API: APIConfig{
			ListenAddr:      ":8088",
			RateLimit:       600,
			RateWindow:      time.Minute,
			MaxFrameBytes:   2 << 20,
			MaxFramePixels:  4 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Sessions: SessionsConfig{
			Max:         256,
			IdleTimeout: 10 * time.Minute,
		},
		Gaze: GazeConfig{PollInterval: 2 * time.Second},
		Motion: MotionConfig{
			Interval:  500 * time.Millisecond,
			Width:     16,
			Height:    12,
			Threshold: 3000,
		},
		Challenge: ChallengeConfig{Length: 4},
		Inference: InferenceConfig{
			BaseURL:          "http://127.0.0.1:9400",
			Timeout:          8 * time.Second,
			MaxRPS:           20,
			Burst:            5,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Storage: StorageConfig{Driver: StorageMemory},
		Events: EventsConfig{
			Kafka: KafkaConfig{Topic: "gazegate.impressions"},
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// Clone returns a deep copy of cfg.
func (cfg AppConfig) Clone() AppConfig {
	out := cfg
	if cfg.Player.AdBreaks != nil {
		out.Player.AdBreaks = make([]AdBreak, len(cfg.Player.AdBreaks))
		for i, b := range cfg.Player.AdBreaks {
			out.Player.AdBreaks[i] = b
			if b.SkipTime != nil {
				v := *b.SkipTime
				out.Player.AdBreaks[i].SkipTime = &v
			}
		}
	}
	if cfg.Events.Kafka.Brokers != nil {
		out.Events.Kafka.Brokers = append([]string(nil), cfg.Events.Kafka.Brokers...)
	}
	return out
}
