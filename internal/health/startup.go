// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/gazegate/internal/config"
	"github.com/ManuGH/gazegate/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, cfg.API.ListenAddr); err != nil {
		return err
	}
	if err := checkInferenceURL(logger, cfg.Inference.BaseURL); err != nil {
		return err
	}
	if err := checkStorage(logger, cfg.Storage); err != nil {
		return fmt.Errorf("storage check failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(cfg.Events.Kafka.Brokers) > 0 {
		logger.Info().Strs("brokers", cfg.Events.Kafka.Brokers).Str("topic", cfg.Events.Kafka.Topic).
			Msg("impression events will be published")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid API listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid API listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("API listen address is valid")
	return nil
}

func checkInferenceURL(logger zerolog.Logger, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid inference base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("inference base URL scheme must be http or https, got: %q", u.Scheme)
	}
	if _, err := normalizeHost(u.Hostname()); err != nil {
		return fmt.Errorf("inference base URL: %w", err)
	}
	logger.Info().Str("url", u.Redacted()).Msg("inference base URL is valid")
	return nil
}

// normalizeHost lowercases IPs and converts names to their ASCII form.
func normalizeHost(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("missing host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	return strings.ToLower(ascii), nil
}

func checkStorage(logger zerolog.Logger, st config.StorageConfig) error {
	switch st.Driver {
	case config.StorageMemory, "":
		logger.Warn().Msg("impressions are kept in memory and lost on restart")
		return nil
	case config.StorageSQLite:
		return checkWritableDir(logger, filepath.Dir(st.DSN))
	case config.StorageBadger:
		if st.DSN == "" {
			return nil
		}
		return checkWritableDir(logger, st.DSN)
	default:
		// Network stores are probed by the readiness check.
		return nil
	}
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)
	logger.Info().Str("path", path).Msg("storage directory is writable")
	return nil
}
