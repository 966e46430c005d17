// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reasoning turns natural-language instructions into commands and
// asks a language model to review them.
package reasoning

import (
	"context"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
)

// Verdict is the semantic review of one command.
//
// Issues and Suggestions are never nil.
type Verdict struct {
	IsValid     bool     `json:"isValid"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// normalize replaces nil slices with empty ones.
func (v Verdict) normalize() Verdict {
	if v.Issues == nil {
		v.Issues = []string{}
	}
	if v.Suggestions == nil {
		v.Suggestions = []string{}
	}
	return v
}

// Reasoner is the instruction-reasoning collaborator.
//
// # Description
//
// ParseInstructions converts free text into an ordered command list, which
// may be empty. ValidateCommand reviews a single command for logical
// consistency and safety. ExplainCommand describes a command in prose and
// fails rather than returning an empty explanation.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Reasoner interface {
	ParseInstructions(ctx context.Context, text string) ([]commands.Command, error)
	ValidateCommand(ctx context.Context, cmd commands.Command) (Verdict, error)
	ExplainCommand(ctx context.Context, cmd commands.Command) (string, error)
}
