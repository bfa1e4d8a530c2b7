// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command microbench measures the per-call cost of small functions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// closeTimeout bounds telemetry flushing after the command returns.
const closeTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// execute runs the command line and then releases the env built by setup,
// whether or not the command failed. cobra skips post-run hooks on error.
func execute(ctx context.Context, args []string) error {
	app = nil
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if app == nil {
		return err
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if closeErr := app.close(closeCtx); closeErr != nil {
		return errors.Join(err, fmt.Errorf("shutdown: %w", closeErr))
	}
	return err
}
