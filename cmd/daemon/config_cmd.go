// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/gazegate/internal/config"
	"github.com/ManuGH/gazegate/internal/version"
)

// EnvDataDir points at the directory holding the default config.yaml.
const EnvDataDir = "GAZEGATE_DATA"

func runConfigCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage()
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:])
	case "dump":
		return runConfigDump(args[1:], os.Stdout)
	case "init":
		return runConfigInit(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage()
		return 2
	}
}

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  gazegate config validate [--file|-f config.yaml]")
	fmt.Fprintln(os.Stderr, "  gazegate config dump [--file|-f config.yaml] [--format=yaml|json]")
	fmt.Fprintln(os.Stderr, "  gazegate config init --file|-f config.yaml [--force]")
}

func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv(EnvDataDir))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func fileFlag(fs *flag.FlagSet) *string {
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	return &file
}

func runConfigValidate(args []string) int {
	fs := flag.NewFlagSet("gazegate config validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	file := fileFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(*file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}
	if configPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --file is required (no default config.yaml found in $%s)\n", EnvDataDir)
		return 2
	}

	if _, err := config.NewLoader(configPath, version.Version).Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		return 1
	}

	fmt.Printf("✓ %s is valid\n", configPath)
	return 0
}

// runConfigDump prints the effective configuration (defaults, file, env).
func runConfigDump(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("gazegate config dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	file := fileFlag(fs)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(*file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	cfg.Storage.DSN = redactDSN(cfg.Storage.DSN)

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "yaml", "yml":
		data, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_, _ = out.Write(data)
		return 0
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unsupported format: %s (use yaml or json)\n", *format)
		return 2
	}
}

func runConfigInit(args []string) int {
	fs := flag.NewFlagSet("gazegate config init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	file := fileFlag(fs)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(*file)
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		return 2
	}
	if _, err := os.Stat(configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s exists (use --force to overwrite)\n", configPath)
		return 1
	}

	if err := config.NewManager(configPath).Save(config.Defaults()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", configPath, err)
		return 1
	}
	fmt.Printf("✓ wrote default configuration to %s\n", configPath)
	return 0
}

// redactDSN masks the password of URL-shaped DSNs.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}
