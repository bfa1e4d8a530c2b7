// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/microbench/pkg/store"
)

// RunReader is the read side of the result store.
type RunReader interface {
	Get(id string) (*store.Run, error)
	List(ctx context.Context, limit int) ([]*store.Run, error)
	Latest(ctx context.Context) (*store.Run, error)
}

// WorkloadLister lists the registered workload names.
type WorkloadLister interface {
	List() []string
}

const defaultListLimit = 20

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListRuns returns run summaries, newest first. ?limit=N bounds the count.
// Store failures are logged to logger.
func ListRuns(runs RunReader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultListLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}

		list, err := runs.List(c.Request.Context(), limit)
		if err != nil {
			logger.Error("list runs failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
			return
		}
		summaries := make([]store.Summary, 0, len(list))
		for _, run := range list {
			summaries = append(summaries, run.Summarize())
		}
		c.JSON(http.StatusOK, gin.H{"runs": summaries})
	}
}

// GetRun returns one run with every record.
func GetRun(runs RunReader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := runs.Get(c.Param("id"))
		writeRun(c, logger, run, err)
	}
}

// GetLatestRun returns the most recent run.
func GetLatestRun(runs RunReader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := runs.Latest(c.Request.Context())
		writeRun(c, logger, run, err)
	}
}

func writeRun(c *gin.Context, logger *slog.Logger, run *store.Run, err error) {
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
	case err != nil:
		logger.Error("load run failed", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
	default:
		c.JSON(http.StatusOK, run)
	}
}

// ListWorkloads returns the registered workload names.
func ListWorkloads(workloads WorkloadLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"workloads": workloads.List()})
	}
}
