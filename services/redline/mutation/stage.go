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
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
)

// Stage writes the decoded document handle to a uniquely named file in dir.
//
// # Description
//
// The returned release func removes the file and is safe to call more than
// once. It is never nil, so callers can defer it before checking err.
//
// # Inputs
//
//   - dir: Directory for the file. Created if missing. Empty uses os.TempDir().
//   - handle: Base64 document handle.
//
// # Outputs
//
//   - string: Path of the staged file.
//   - func(): Removes the staged file.
//   - error: ErrInvalidHandle for bad base64, or a filesystem error.
func Stage(dir, handle string) (string, func(), error) {
	noop := func() {}

	raw, err := base64.StdEncoding.DecodeString(handle)
	if err != nil {
		return "", noop, fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}

	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", noop, fmt.Errorf("create staging directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "redline-*.docx")
	if err != nil {
		return "", noop, fmt.Errorf("create staging file: %w", err)
	}
	path := f.Name()
	release := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove staged document", "path", path, "error", err)
		}
	}

	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		release()
		return "", noop, fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", noop, fmt.Errorf("close staging file: %w", err)
	}
	return path, release, nil
}

// Collect reads a staged file back into a document handle.
func Collect(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read processed document: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
