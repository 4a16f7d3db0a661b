// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/ManuGH/gazegate/internal/health"
	"github.com/spf13/cobra"
)

// newStatusCmd queries a running daemon for its verbose health report.
func newStatusCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show daemon status",
		Long:         "Show the version, uptime and per-component health of a running gazegate daemon.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := fetchHealth(addr, timeout)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), resp)
			if resp.Status == health.StatusUnhealthy {
				return fmt.Errorf("daemon is %s", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8088", "API address of the daemon")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func fetchHealth(addr string, timeout time.Duration) (health.HealthResponse, error) {
	var out health.HealthResponse
	client := http.Client{Timeout: timeout}
	resp, err := client.Get("http://" + addr + "/healthz?verbose=true")
	if err != nil {
		return out, fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode health response: %w", err)
	}
	return out, nil
}

func printStatus(w io.Writer, resp health.HealthResponse) {
	fmt.Fprintf(w, "gazegate %s: %s (up %s)\n", resp.Version, resp.Status, time.Duration(resp.Uptime)*time.Second)

	names := make([]string, 0, len(resp.Checks))
	for name := range resp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := resp.Checks[name]
		line := fmt.Sprintf("  %-18s %-9s %s", name, c.Status, c.Message)
		if c.Error != "" {
			line += " (" + c.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
}
