// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package redline wires the contract redlining pipeline into a runnable
// service: collaborators, status store, job front door and HTTP router.
//
// # Architecture
//
//	HTTP (gin) ──► jobs.Service ──┐
//	                              ├──► pipeline.Orchestrator ──► mutation.Mutator
//	CLI batch run ────────────────┘            │
//	                                           └──► reasoning.Reasoner ──► llm.LLMClient
//
// Every status transition goes through one status.Tracker, so HTTP polling
// sees clause jobs and batch instructions alike.
package redline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianRedline/services/llm"
	"github.com/AleutianAI/AleutianRedline/services/redline/instructions"
	"github.com/AleutianAI/AleutianRedline/services/redline/jobs"
	"github.com/AleutianAI/AleutianRedline/services/redline/mutation"
	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/AleutianAI/AleutianRedline/services/redline/pipeline"
	"github.com/AleutianAI/AleutianRedline/services/redline/reasoning"
	"github.com/AleutianAI/AleutianRedline/services/redline/routes"
	"github.com/AleutianAI/AleutianRedline/services/redline/status"
	rbadger "github.com/AleutianAI/AleutianRedline/services/redline/storage/badger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Overrides replaces collaborators that New would otherwise build from
// Config. Nil fields are built normally.
type Overrides struct {
	LLM      llm.LLMClient
	Reasoner reasoning.Reasoner
	Mutator  mutation.Mutator
	Resolver instructions.Resolver
	Logger   *slog.Logger
}

// Service owns every long-lived component.
//
// # Thread Safety
//
// Safe for concurrent use once New returns. Close must be called once.
type Service struct {
	cfg    Config
	logger *slog.Logger

	Metrics      *observability.Metrics
	Tracker      *status.Tracker
	Reasoner     reasoning.Reasoner
	Orchestrator *pipeline.Orchestrator
	Jobs         *jobs.Service

	closers []func() error
}

// New builds a Service from cfg.
//
// # Description
//
// Defaults are applied and the config validated. Collaborators are built
// in dependency order; if any step fails, everything already opened is
// closed before the error is returned.
func New(ctx context.Context, cfg Config, ov Overrides) (svc *Service, err error) {
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := ov.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, logger: logger, Metrics: observability.NewMetrics()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	store, err := s.openStore()
	if err != nil {
		return nil, err
	}
	s.Tracker = status.NewTracker(store)
	s.closers = append(s.closers, s.Tracker.Close)

	s.Reasoner = ov.Reasoner
	if s.Reasoner == nil {
		client := ov.LLM
		if client == nil {
			if client, err = s.newLLMClient(); err != nil {
				return nil, err
			}
		}
		client = llm.NewRateLimitedClient(client, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
		s.Reasoner = reasoning.NewLLMReasoner(client, logger)
	}

	mutator := ov.Mutator
	if mutator == nil {
		mutator = mutation.NewProcessMutator(mutation.ProcessConfig{
			Python:     cfg.Engine.Python,
			ScriptsDir: cfg.Engine.ScriptsDir,
			TempDir:    cfg.Engine.TempDir,
			Timeout:    cfg.Engine.ScriptTimeout,
			Logger:     logger,
		})
	}

	resolver := ov.Resolver
	if resolver == nil {
		if resolver, err = s.newResolver(ctx); err != nil {
			return nil, err
		}
	}

	s.Orchestrator, err = pipeline.New(pipeline.Config{
		Reasoner:    s.Reasoner,
		Mutator:     mutator,
		Resolver:    resolver,
		Tracker:     s.Tracker,
		Metrics:     s.Metrics,
		Logger:      logger,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	s.Jobs, err = jobs.New(jobs.Config{
		Processor: s.Orchestrator,
		Tracker:   s.Tracker,
		Metrics:   s.Metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create job service: %w", err)
	}
	return s, nil
}

func (s *Service) openStore() (status.Store, error) {
	switch s.cfg.Status.Backend {
	case "badger":
		dbCfg := rbadger.DefaultConfig(s.cfg.Status.Path)
		dbCfg.Logger = s.logger
		store, err := status.OpenBadgerStore(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("open status store: %w", err)
		}
		s.logger.Info("Using BadgerDB status store", "path", s.cfg.Status.Path)
		return store, nil
	default:
		return status.NewMemoryStore(), nil
	}
}

func (s *Service) newLLMClient() (llm.LLMClient, error) {
	switch s.cfg.LLM.Backend {
	case "ollama":
		client, err := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: s.cfg.LLM.OllamaURL,
			Model:   s.cfg.LLM.OllamaModel,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		s.logger.Info("Using Ollama LLM backend", "url", s.cfg.LLM.OllamaURL)
		return client, nil
	default:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  s.cfg.LLM.OpenAIAPIKey,
			Model:   s.cfg.LLM.OpenAIModel,
			BaseURL: s.cfg.LLM.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		s.logger.Info("Using OpenAI LLM backend")
		return client, nil
	}
}

func (s *Service) newResolver(ctx context.Context) (instructions.Resolver, error) {
	d := s.cfg.Documents
	if d.GCSBucket == "" {
		return instructions.DirResolver{Dir: d.Dir}, nil
	}
	gcs, err := instructions.NewGCSResolver(ctx, d.GCSBucket, d.GCSPrefix, d.GCSCredentials)
	if err != nil {
		return nil, fmt.Errorf("create gcs resolver: %w", err)
	}
	s.closers = append(s.closers, gcs.Close)
	s.logger.Info("Reading contracts from GCS", "bucket", d.GCSBucket, "prefix", d.GCSPrefix)
	return gcs, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Router builds the gin engine serving the HTTP surface.
func (s *Service) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	routes.SetupRoutes(router, routes.Options{
		Submitter:        s.Jobs,
		Explainer:        s.Reasoner,
		Metrics:          s.Metrics,
		APIToken:         s.cfg.APIToken,
		MaxDocumentBytes: s.cfg.MaxDocumentBytes,
	})
	return router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
// waits for in-flight jobs.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	s.Jobs.Wait()
	return nil
}

// Close releases the status store and any remote clients.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
