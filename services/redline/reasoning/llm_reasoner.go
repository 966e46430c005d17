// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianRedline/services/llm"
	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("redline.reasoning")

// LLMReasoner implements Reasoner by prompting a language model.
//
// # Description
//
// ParseInstructions and ValidateCommand run in JSON mode and decode the
// model's reply. ExplainCommand returns free text. Prompts and sampling
// temperatures are fixed per operation (0.2 parse, 0.1 validate,
// 0.3 explain).
//
// # Thread Safety
//
// Safe for concurrent use if the underlying client is.
type LLMReasoner struct {
	client llm.LLMClient
	logger *slog.Logger
}

// NewLLMReasoner creates a reasoner over client. A nil logger uses
// slog.Default().
func NewLLMReasoner(client llm.LLMClient, logger *slog.Logger) *LLMReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReasoner{client: client, logger: logger}
}

// parseReply is the envelope of a ParseInstructions reply.
type parseReply struct {
	Commands []json.RawMessage `json:"commands"`
}

// validateReply mirrors Verdict with an optional IsValid, which is treated
// as false when the model omits it.
type validateReply struct {
	IsValid     *bool    `json:"isValid"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// ParseInstructions implements Reasoner.
//
// A reply without a "commands" key yields an empty list. A command that
// cannot be decoded fails the whole call.
func (r *LLMReasoner) ParseInstructions(ctx context.Context, text string) ([]commands.Command, error) {
	ctx, span := tracer.Start(ctx, "LLMReasoner.ParseInstructions")
	defer span.End()

	raw, err := r.client.Generate(ctx, text, llm.GenerationParams{
		System:      parsePrompt,
		Temperature: llm.Temperature(parseTemperature),
		JSONMode:    true,
	})
	if err != nil {
		return nil, spanError(span, fmt.Errorf("generate commands: %w", err))
	}

	var reply parseReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return nil, spanError(span, fmt.Errorf("decode generated commands: %w", err))
	}

	out := make([]commands.Command, 0, len(reply.Commands))
	for i, item := range reply.Commands {
		cmd, err := commands.Decode(item)
		if err != nil {
			return nil, spanError(span, fmt.Errorf("generated command %d: %w", i, err))
		}
		out = append(out, cmd)
	}
	span.SetAttributes(attribute.Int("reasoning.command_count", len(out)))
	r.logger.Debug("Generated commands", "command_count", len(out))
	return out, nil
}

// ValidateCommand implements Reasoner.
func (r *LLMReasoner) ValidateCommand(ctx context.Context, cmd commands.Command) (Verdict, error) {
	ctx, span := tracer.Start(ctx, "LLMReasoner.ValidateCommand")
	defer span.End()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return Verdict{}, spanError(span, fmt.Errorf("encode command: %w", err))
	}
	raw, err := r.client.Generate(ctx, string(payload), llm.GenerationParams{
		System:      validatePrompt,
		Temperature: llm.Temperature(validateTemperature),
		JSONMode:    true,
	})
	if err != nil {
		return Verdict{}, spanError(span, fmt.Errorf("validate command: %w", err))
	}

	var reply validateReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return Verdict{}, spanError(span, fmt.Errorf("decode validation verdict: %w", err))
	}
	verdict := Verdict{
		IsValid:     reply.IsValid != nil && *reply.IsValid,
		Issues:      reply.Issues,
		Suggestions: reply.Suggestions,
	}.normalize()
	span.SetAttributes(attribute.Bool("reasoning.is_valid", verdict.IsValid))
	return verdict, nil
}

// ExplainCommand implements Reasoner.
func (r *LLMReasoner) ExplainCommand(ctx context.Context, cmd commands.Command) (string, error) {
	ctx, span := tracer.Start(ctx, "LLMReasoner.ExplainCommand")
	defer span.End()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", spanError(span, fmt.Errorf("encode command: %w", err))
	}
	raw, err := r.client.Generate(ctx, string(payload), llm.GenerationParams{
		System:      explainPrompt,
		Temperature: llm.Temperature(explainTemperature),
	})
	if err != nil {
		return "", spanError(span, fmt.Errorf("explain command: %w", err))
	}
	explanation := strings.TrimSpace(raw)
	if explanation == "" {
		return "", spanError(span, errors.New("explain command: empty explanation"))
	}
	return explanation, nil
}

// extractJSON strips a markdown code fence some models wrap around JSON.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// spanError records err on span and returns it.
func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

var _ Reasoner = (*LLMReasoner)(nil)
