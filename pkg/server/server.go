// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes stored benchmark runs over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
)

// Options are the server's dependencies.
type Options struct {
	// Runs backs the /v1/runs endpoints. Required.
	Runs RunReader

	// Workloads backs /v1/workloads. Optional.
	Workloads WorkloadLister

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	// ServiceName labels otelgin spans. Default: "microbench".
	ServiceName string

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration

	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit float64
	RateBurst int

	// Logger receives handler and server errors. Default: slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router *gin.Engine, opts Options) {
	logger := opts.logger()
	router.GET("/healthz", HealthCheck)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.GET("", ListRuns(opts.Runs, logger))
			runs.GET("/latest", GetLatestRun(opts.Runs, logger))
			runs.GET("/:id", GetRun(opts.Runs, logger))
		}
		if opts.Workloads != nil {
			v1.GET("/workloads", ListWorkloads(opts.Workloads))
		}
	}
}

// NewRouter builds the gin engine with recovery and tracing middleware.
func NewRouter(opts Options) *gin.Engine {
	service := opts.ServiceName
	if service == "" {
		service = "microbench"
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(service))
	router.Use(RateLimit(newLimiter(opts.RateLimit, opts.RateBurst)))
	SetupRoutes(router, opts)
	return router
}

// Server serves the results API until its context is cancelled.
type Server struct {
	http    *http.Server
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a server for addr.
func New(addr string, opts Options) (*Server, error) {
	if opts.Runs == nil {
		return nil, errors.New("runs reader must not be nil")
	}
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
		timeout: timeout,
		logger:  opts.logger(),
	}, nil
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("results server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.logger.Info("results server shutting down")
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
