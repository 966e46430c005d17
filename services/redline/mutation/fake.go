// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mutation

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
)

// FakeCall records one Mutate invocation.
type FakeCall struct {
	Handle  string
	Command commands.Command
}

// Fake is a deterministic in-process Mutator for tests.
//
// By default each call appends a line "<action>:<text>" to the decoded
// document and returns the re-encoded result, so the order in which
// commands were threaded is visible in the final handle. Set Apply to
// override the behavior.
type Fake struct {
	// Apply, when set, replaces the default transformation.
	Apply func(handle string, cmd commands.Command) (string, error)

	mu    sync.Mutex
	calls []FakeCall
}

// NewFake returns a Fake using the default transformation.
func NewFake() *Fake {
	return &Fake{}
}

// Mutate implements Mutator.
func (f *Fake) Mutate(ctx context.Context, handle string, cmd commands.Command) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Handle: handle, Command: cmd})
	apply := f.Apply
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if apply != nil {
		return apply(handle, cmd)
	}
	return AppendMarker(handle, cmd)
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// AppendMarker is the Fake's default transformation.
func AppendMarker(handle string, cmd commands.Command) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(handle)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}
	text := ""
	if cmd.Content != nil {
		text = cmd.Content.Text
	}
	raw = append(raw, []byte(fmt.Sprintf("\n%s:%s", cmd.Action, text))...)
	return base64.StdEncoding.EncodeToString(raw), nil
}

var _ Mutator = (*Fake)(nil)
