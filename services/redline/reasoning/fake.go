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
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
)

// Fake is a deterministic Reasoner for tests.
//
// ParseInstructions returns Commands[text], or an empty list when the text
// is unknown. ValidateCommand accepts everything unless Reject returns
// issues for the command. ExplainCommand returns a one-line summary. Each
// behavior can be replaced through the corresponding func field.
type Fake struct {
	Commands map[string][]commands.Command

	// Reject returns the issues for cmd, or nil to accept it.
	Reject func(cmd commands.Command) []string

	ParseFunc    func(ctx context.Context, text string) ([]commands.Command, error)
	ValidateFunc func(ctx context.Context, cmd commands.Command) (Verdict, error)
	ExplainFunc  func(ctx context.Context, cmd commands.Command) (string, error)

	mu        sync.Mutex
	parsed    []string
	validated []commands.Command
}

// ParseInstructions implements Reasoner.
func (f *Fake) ParseInstructions(ctx context.Context, text string) ([]commands.Command, error) {
	f.mu.Lock()
	f.parsed = append(f.parsed, text)
	f.mu.Unlock()

	if f.ParseFunc != nil {
		return f.ParseFunc(ctx, text)
	}
	cmds := f.Commands[text]
	out := make([]commands.Command, len(cmds))
	copy(out, cmds)
	return out, nil
}

// ValidateCommand implements Reasoner.
func (f *Fake) ValidateCommand(ctx context.Context, cmd commands.Command) (Verdict, error) {
	f.mu.Lock()
	f.validated = append(f.validated, cmd)
	f.mu.Unlock()

	if f.ValidateFunc != nil {
		v, err := f.ValidateFunc(ctx, cmd)
		return v.normalize(), err
	}
	if f.Reject != nil {
		if issues := f.Reject(cmd); len(issues) > 0 {
			return Verdict{IsValid: false, Issues: issues}.normalize(), nil
		}
	}
	return Verdict{IsValid: true}.normalize(), nil
}

// ExplainCommand implements Reasoner.
func (f *Fake) ExplainCommand(ctx context.Context, cmd commands.Command) (string, error) {
	if f.ExplainFunc != nil {
		return f.ExplainFunc(ctx, cmd)
	}
	return fmt.Sprintf("%s at %s %s", cmd.Action, cmd.Location.Type, cmd.Location.Position), nil
}

// Parsed returns the instruction texts seen by ParseInstructions.
func (f *Fake) Parsed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.parsed...)
}

// Validated returns the commands seen by ValidateCommand.
func (f *Fake) Validated() []commands.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]commands.Command(nil), f.validated...)
}

var _ Reasoner = (*Fake)(nil)
