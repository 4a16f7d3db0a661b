// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func runHealthcheckCLI(args []string) int {
	fs := flag.NewFlagSet("gazegate healthcheck", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	mode := fs.String("mode", "ready", "healthcheck mode: ready (default) or live")
	addr := fs.String("addr", "localhost:8088", "API address to check")
	timeout := fs.Duration("timeout", 5*time.Second, "check timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	code, err := probe(*addr, *mode, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed (network): %v\n", err)
		return 1
	}
	if code != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck failed (status): %d\n", code)
		return 1
	}

	fmt.Printf("Healthcheck successful (%s)\n", *mode)
	return 0
}

func probe(addr, mode string, timeout time.Duration) (int, error) {
	path := "/healthz"
	if mode == "ready" {
		path = "/readyz"
	}
	client := http.Client{Timeout: timeout}
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
