// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline drives instructions through command generation,
// validation and sequential execution.
//
// # Description
//
// For each instruction the Orchestrator resolves the target document, asks
// the reasoning collaborator for commands, validates every command locally
// and semantically, then applies them one by one through the mutation
// collaborator, threading the document handle from each command to the
// next. The outcome of every instruction is a terminal ProcessingStatus.
// One instruction failing never affects another.
//
// # Thread Safety
//
// An Orchestrator is safe for concurrent use. Instructions of one run are
// processed concurrently up to Config.Concurrency; the commands of one
// instruction are always applied sequentially.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/instructions"
	"github.com/AleutianAI/AleutianRedline/services/redline/mutation"
	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/AleutianAI/AleutianRedline/services/redline/reasoning"
	"github.com/AleutianAI/AleutianRedline/services/redline/status"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("redline.pipeline")

// =============================================================================
// Errors
// =============================================================================

// ErrSemanticRejection is matched by every *RejectionError via errors.Is.
var ErrSemanticRejection = errors.New("command rejected by semantic validation")

// RejectionError reports the issues raised by semantic validation.
type RejectionError struct {
	Issues []string
}

func (e *RejectionError) Error() string {
	return "Invalid command: " + strings.Join(e.Issues, ", ")
}

// Is makes errors.Is(err, ErrSemanticRejection) true for any RejectionError.
func (e *RejectionError) Is(target error) bool {
	return target == ErrSemanticRejection
}

// =============================================================================
// Configuration
// =============================================================================

// DefaultConcurrency is the number of instructions processed at once.
const DefaultConcurrency = 4

// Config wires an Orchestrator to its collaborators.
type Config struct {
	// Reasoner generates and reviews commands. Required.
	Reasoner reasoning.Reasoner

	// Mutator applies commands. Required.
	Mutator mutation.Mutator

	// Resolver maps contracts to documents. Required for instruction runs;
	// ProcessCommands does not use it.
	Resolver instructions.Resolver

	// Tracker, when set, records every instruction's status as it runs so
	// it can be polled while a batch is in flight.
	Tracker *status.Tracker

	// Metrics may be nil.
	Metrics *observability.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Concurrency bounds parallel instructions. Default DefaultConcurrency.
	Concurrency int

	// NewID builds an instruction id from its key. Default "<key>-<uuid v7>".
	NewID func(key string) string
}

// Orchestrator runs instructions end to end.
type Orchestrator struct {
	cfg Config
}

// New validates cfg and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Reasoner == nil {
		return nil, errors.New("pipeline: reasoner is required")
	}
	if cfg.Mutator == nil {
		return nil, errors.New("pipeline: mutator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.NewID == nil {
		cfg.NewID = newInstructionID
	}
	return &Orchestrator{cfg: cfg}, nil
}

func newInstructionID(key string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return key + "-" + id.String()
}

// =============================================================================
// Runs
// =============================================================================

// Run obtains the instruction list from src and processes it.
//
// # Outputs
//
//   - []datatypes.ProcessingStatus: One terminal status per instruction, in
//     source order.
//   - error: Non-nil only when the instruction list cannot be obtained.
func (o *Orchestrator) Run(ctx context.Context, src instructions.Source) ([]datatypes.ProcessingStatus, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()

	list, err := src.Instructions(ctx)
	if err != nil {
		o.cfg.Metrics.RecordRun(err)
		o.cfg.Logger.Error("Failed to obtain instructions", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("obtain instructions: %w", err)
	}
	o.cfg.Logger.Info("Parsed instructions", "count", len(list))
	span.SetAttributes(attribute.Int("pipeline.instruction_count", len(list)))

	results := o.RunInstructions(ctx, list)
	o.cfg.Metrics.RecordRun(nil)
	return results, nil
}

// RunInstructions processes list concurrently and returns the terminal
// statuses in input order.
func (o *Orchestrator) RunInstructions(ctx context.Context, list []instructions.Instruction) []datatypes.ProcessingStatus {
	results := make([]datatypes.ProcessingStatus, len(list))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, inst := range list {
		g.Go(func() error {
			results[i] = o.ProcessInstruction(ctx, inst)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ProcessInstruction runs one instruction end to end.
func (o *Orchestrator) ProcessInstruction(ctx context.Context, inst instructions.Instruction) datatypes.ProcessingStatus {
	id := o.cfg.NewID(inst.Key())
	logger := o.cfg.Logger.With("instruction_id", id, "contract", inst.Contract)

	ctx, span := tracer.Start(ctx, "Orchestrator.ProcessInstruction",
		trace.WithAttributes(attribute.String("pipeline.instruction_id", id)))
	defer span.End()

	o.begin(ctx, id, logger)

	final := o.runInstruction(ctx, id, inst, logger)
	o.finish(ctx, final, span, logger)
	return final
}

func (o *Orchestrator) runInstruction(ctx context.Context, id string, inst instructions.Instruction, logger *slog.Logger) datatypes.ProcessingStatus {
	if o.cfg.Resolver == nil {
		return datatypes.Failed(id, "no document resolver configured")
	}
	logger.Info("Reading contract document")
	handle, err := o.cfg.Resolver.Resolve(ctx, inst.Contract)
	if err != nil {
		return datatypes.Failed(id, err.Error())
	}

	logger.Info("Generating commands")
	cmds, err := o.cfg.Reasoner.ParseInstructions(ctx, inst.Prompt())
	if err != nil {
		return datatypes.Failed(id, err.Error())
	}
	logger.Info("Generated commands", "command_count", len(cmds))

	for i := range cmds {
		if cmds[i].DocumentID == "" {
			cmds[i].DocumentID = inst.Contract
		}
	}

	document, changes, err := o.apply(ctx, handle, cmds, logger)
	if err != nil {
		return datatypes.Failed(id, err.Error())
	}
	return datatypes.Completed(id, document, changes)
}

// ProcessCommands validates and applies cmds to handle as one unit of work
// identified by id, and returns its terminal status. It does not touch the
// Tracker; the caller owns the status of id.
func (o *Orchestrator) ProcessCommands(ctx context.Context, id, handle string, cmds []commands.Command) datatypes.ProcessingStatus {
	logger := o.cfg.Logger.With("job_id", id)
	ctx, span := tracer.Start(ctx, "Orchestrator.ProcessCommands",
		trace.WithAttributes(attribute.String("pipeline.job_id", id)))
	defer span.End()

	var final datatypes.ProcessingStatus
	document, changes, err := o.apply(ctx, handle, cmds, logger)
	if err != nil {
		final = datatypes.Failed(id, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		final = datatypes.Completed(id, document, changes)
	}
	return final
}

// =============================================================================
// Validation and Execution
// =============================================================================

// apply validates every command, then executes them in order.
func (o *Orchestrator) apply(ctx context.Context, handle string, cmds []commands.Command, logger *slog.Logger) (string, []datatypes.Change, error) {
	if err := o.validateAll(ctx, cmds, logger); err != nil {
		return "", nil, err
	}

	document := handle
	changes := make([]datatypes.Change, 0, len(cmds))
	for i, cmd := range cmds {
		next, err := o.execute(ctx, i, document, cmd, logger)
		if err != nil {
			return "", nil, err
		}
		document = next
		changes = append(changes, ChangeFor(cmd))
	}
	return document, changes, nil
}

// validateAll runs local then semantic validation on every command before
// any is executed.
func (o *Orchestrator) validateAll(ctx context.Context, cmds []commands.Command, logger *slog.Logger) error {
	for i, cmd := range cmds {
		if err := commands.Validate(cmd); err != nil {
			logger.Error("Command failed local validation", "command_index", i, "error", err)
			return err
		}
		verdict, err := o.cfg.Reasoner.ValidateCommand(ctx, cmd)
		if err != nil {
			return fmt.Errorf("semantic validation: %w", err)
		}
		if !verdict.IsValid {
			logger.Error("Command validation failed", "command_index", i, "issues", verdict.Issues)
			return &RejectionError{Issues: verdict.Issues}
		}
	}
	return nil
}

// execute applies one command addressed to the current document.
func (o *Orchestrator) execute(ctx context.Context, index int, document string, cmd commands.Command, logger *slog.Logger) (string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.ExecuteCommand", trace.WithAttributes(
		attribute.Int("pipeline.command_index", index),
		attribute.String("pipeline.action", string(cmd.Action)),
	))
	defer span.End()

	logger.Info("Executing command", "command_index", index, "action", cmd.Action)
	start := time.Now()
	next, err := o.cfg.Mutator.Mutate(ctx, document, cmd.WithDocument(document))
	o.cfg.Metrics.RecordCommand(string(cmd.Action), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Command execution failed", "command_index", index, "error", err)
		return "", err
	}
	return next, nil
}

// ChangeFor derives the change record of an executed command.
//
// modify becomes replace with the located text as oldText, insert becomes
// add with the section number, and delete records the located text.
func ChangeFor(cmd commands.Command) datatypes.Change {
	var text string
	if cmd.Content != nil {
		text = cmd.Content.Text
	}
	loc := cmd.Location

	switch cmd.Action {
	case commands.ActionModify:
		return datatypes.Change{Type: datatypes.ChangeReplace, Text: text, OldText: firstNonEmpty(loc.MatchText, loc.Value)}
	case commands.ActionInsert:
		return datatypes.Change{Type: datatypes.ChangeAdd, Text: text, Section: loc.Number.String()}
	default:
		return datatypes.Change{Type: datatypes.ChangeDelete, Text: firstNonEmpty(loc.MatchText, loc.Value, loc.Number.String())}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// Status Bookkeeping
// =============================================================================

func (o *Orchestrator) begin(ctx context.Context, id string, logger *slog.Logger) {
	if o.cfg.Tracker == nil {
		return
	}
	if _, err := o.cfg.Tracker.Begin(ctx, id); err != nil {
		logger.Warn("Failed to record instruction start", "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, final datatypes.ProcessingStatus, span trace.Span, logger *slog.Logger) {
	var runErr error
	if final.Status == datatypes.StateFailed {
		runErr = errors.New(final.Result.Error)
		span.SetStatus(codes.Error, final.Result.Error)
		logger.Error("Failed to process instruction", "error", final.Result.Error)
	} else {
		logger.Info("Successfully processed instruction", "change_count", len(final.Result.Changes))
	}
	o.cfg.Metrics.RecordInstruction(runErr)

	if o.cfg.Tracker == nil {
		return
	}
	if err := o.cfg.Tracker.Finish(ctx, final); err != nil {
		logger.Warn("Failed to record instruction result", "error", err)
	}
}
