// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/microbench/pkg/server"
)

var serveAddr string

func runServe(cmd *cobra.Command, args []string) error {
	if !app.cfg.Storage.Enabled {
		return errHistoryDisabled
	}
	db, results, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	addr := app.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(addr, server.Options{
		Runs:            results,
		Workloads:       app.registry,
		Metrics:         app.telemetry.MetricsHandler(),
		ServiceName:     app.cfg.Telemetry.ServiceName,
		ShutdownTimeout: app.cfg.Server.ShutdownTimeout,
		RateLimit:       app.cfg.Server.RateLimit,
		RateBurst:       app.cfg.Server.RateBurst,
		Logger:          app.logger.Slog(),
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(cmd.Context())
}
