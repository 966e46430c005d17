// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jobs is the asynchronous front door for single clause insertions.
//
// Submit records a processing status and returns at once; the insertion
// itself runs in a background goroutine and its outcome is only visible by
// polling StatusOf.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/AleutianAI/AleutianRedline/services/redline/status"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("redline.jobs")

var (
	// ErrNotFound is returned by StatusOf for an unknown id.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidSubmission wraps request validation failures.
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Processor validates and applies commands as one unit of work.
//
// *pipeline.Orchestrator satisfies it.
type Processor interface {
	ProcessCommands(ctx context.Context, id, handle string, cmds []commands.Command) datatypes.ProcessingStatus
}

// Config wires a Service.
type Config struct {
	Processor Processor
	Tracker   *status.Tracker
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	NewID     func() string
}

// Service accepts clause insertion jobs.
//
// # Thread Safety
//
// Safe for concurrent use.
//
// # Limitations
//
//   - Jobs cannot be cancelled and have no overall deadline; each engine
//     call is bounded by its own script timeout.
type Service struct {
	cfg Config
	wg  sync.WaitGroup
}

// New creates a Service. A nil Tracker uses an in-memory one.
func New(cfg Config) (*Service, error) {
	if cfg.Processor == nil {
		return nil, errors.New("jobs: processor is required")
	}
	if cfg.Tracker == nil {
		cfg.Tracker = status.NewTracker(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	return &Service{cfg: cfg}, nil
}

// Submit validates req, records it as processing and starts the job.
//
// # Description
//
// The job runs on a context detached from ctx's cancellation, so it
// outlives the request that submitted it. Only validation and status store
// failures are returned; everything after that is reported through the
// job's terminal status.
//
// # Outputs
//
//   - datatypes.ProcessingStatus: The initial processing status.
//   - error: ErrInvalidSubmission, or a status store error.
func (s *Service) Submit(ctx context.Context, req datatypes.SubmitRequest) (datatypes.ProcessingStatus, error) {
	if err := req.Validate(); err != nil {
		return datatypes.ProcessingStatus{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	id := s.cfg.NewID()
	initial, err := s.cfg.Tracker.Begin(ctx, id)
	if err != nil {
		return datatypes.ProcessingStatus{}, fmt.Errorf("record job %s: %w", id, err)
	}

	s.cfg.Metrics.JobStarted()
	s.cfg.Logger.Info("Accepted document job", "job_id", id, "filename", req.Filename, "target_section", req.TargetSection)

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(bg, id, req)
	}()
	return initial, nil
}

func (s *Service) run(ctx context.Context, id string, req datatypes.SubmitRequest) {
	ctx, span := tracer.Start(ctx, "jobs.Run", trace.WithNewRoot(),
		trace.WithAttributes(attribute.String("jobs.id", id)))
	defer span.End()

	final := s.cfg.Processor.ProcessCommands(ctx, id, req.Document, []commands.Command{ClauseCommand(req)})

	var jobErr error
	if final.Status == datatypes.StateFailed {
		jobErr = errors.New(final.Result.Error)
		s.cfg.Logger.Error("Document job failed", "job_id", id, "error", final.Result.Error)
	} else {
		s.cfg.Logger.Info("Document job completed", "job_id", id)
	}
	s.cfg.Metrics.JobFinished(jobErr)

	if err := s.cfg.Tracker.Finish(ctx, final); err != nil {
		s.cfg.Logger.Error("Failed to record job result", "job_id", id, "error", err)
	}
}

// StatusOf returns the current status of job id.
func (s *Service) StatusOf(ctx context.Context, id string) (datatypes.ProcessingStatus, error) {
	st, ok, err := s.cfg.Tracker.Get(ctx, id)
	if err != nil {
		return datatypes.ProcessingStatus{}, err
	}
	if !ok {
		return datatypes.ProcessingStatus{}, ErrNotFound
	}
	return st, nil
}

// Wait blocks until every submitted job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ClauseCommand is the insert command a clause submission stands for: the
// clause appended at the end of the target section, matching the
// surrounding style with the requested bold and underline overrides.
func ClauseCommand(req datatypes.SubmitRequest) commands.Command {
	bold := req.Formatting.Bold
	underline := req.Formatting.Underline

	documentID := req.Filename
	if documentID == "" {
		documentID = "document.docx"
	}
	return commands.Command{
		DocumentID: documentID,
		Action:     commands.ActionInsert,
		Location: commands.Location{
			Type:     commands.LocationSection,
			Number:   commands.SectionRef(req.TargetSection),
			Position: commands.PositionEnd,
		},
		Content: &commands.ContentSpecification{
			Text: req.Clause,
			Style: commands.StyleRequirements{
				MatchSource: true,
				Specific:    &commands.SpecificStyle{Bold: &bold, Underline: &underline},
			},
		},
	}
}
