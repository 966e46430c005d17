// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mutation applies a single validated command to a document.
//
// The document format itself is owned by an external engine. This package
// only moves document handles in and out of it: a handle is the whole
// document encoded as standard base64, staged to a temporary file for the
// engine and read back afterwards.
package mutation

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
)

// ErrExecution is matched by every *ExecutionError via errors.Is.
var ErrExecution = errors.New("command execution failed")

// ErrInvalidHandle is returned when a document handle is not valid base64.
var ErrInvalidHandle = errors.New("document handle is not valid base64")

// ExecutionError carries the failure reported by the mutation engine.
//
// Message is surfaced verbatim as the error of a failed instruction.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrExecution) true for any ExecutionError.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// Mutator applies one command to a document.
//
// # Description
//
// Mutate receives the current document handle and a command whose
// DocumentID the caller has already set to that handle. It returns the
// handle of the updated document. Implementations must not retain or
// modify the input handle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use across different
// documents. Commands for one document are applied sequentially by the
// caller.
type Mutator interface {
	Mutate(ctx context.Context, handle string, cmd commands.Command) (string, error)
}
