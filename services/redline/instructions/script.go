// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instructions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ScriptSource runs the instruction document parser:
//
//	<python> <scripts>/instructions_parser.py <doc>
//
// which prints a JSON array of {contract, instruction, clause}.
type ScriptSource struct {
	// Path is the instruction document.
	Path string

	// Python defaults to "python3".
	Python string

	// ScriptsDir defaults to "scripts".
	ScriptsDir string

	// Script defaults to "instructions_parser.py".
	Script string

	// Timeout defaults to two minutes.
	Timeout time.Duration
}

// Instructions implements Source.
func (s *ScriptSource) Instructions(ctx context.Context) ([]Instruction, error) {
	python := s.Python
	if python == "" {
		python = "python3"
	}
	dir := s.ScriptsDir
	if dir == "" {
		dir = "scripts"
	}
	script := s.Script
	if script == "" {
		script = "instructions_parser.py"
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, python, filepath.Join(dir, script), s.Path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			slog.Error("Instruction parser error", "path", s.Path, "stderr", msg)
		}
		return nil, fmt.Errorf("instruction parser failed: %w", err)
	}

	var list []Instruction
	if err := json.Unmarshal(stdout.Bytes(), &list); err != nil {
		return nil, fmt.Errorf("failed to parse instructions: %w", err)
	}
	if list == nil {
		list = []Instruction{}
	}
	return list, nil
}

var _ Source = (*ScriptSource)(nil)
