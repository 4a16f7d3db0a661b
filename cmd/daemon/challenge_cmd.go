// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ManuGH/gazegate/internal/challenge"
	"github.com/google/renameio/v2"
)

// runChallengeCLI renders a sample challenge, for checking the SVG output
// without starting a session.
func runChallengeCLI(args []string) int {
	fs := flag.NewFlagSet("gazegate challenge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	out := fs.String("out", "", "write the SVG to this file instead of stdout")
	length := fs.Int("length", challenge.DefaultLength, "number of characters")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ch := challenge.NewGenerator(challenge.WithLength(*length)).Generate()
	svg, err := ch.SVG()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render challenge: %v\n", err)
		return 1
	}

	if *out == "" {
		_, _ = os.Stdout.Write(svg)
		return 0
	}
	if err := writeAtomic(*out, svg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "answer: %s\n", ch.Text)
	return 0
}

func writeAtomic(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return pending.CloseAtomicallyReplace()
}
