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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
)

// DefaultScriptTimeout bounds a single engine invocation.
const DefaultScriptTimeout = 2 * time.Minute

// ProcessConfig configures a ProcessMutator.
type ProcessConfig struct {
	// Python is the interpreter used to run Script. Default "python3".
	Python string

	// ScriptsDir holds the engine scripts. Default "scripts".
	ScriptsDir string

	// Script is the engine entry point inside ScriptsDir.
	// Default "command_processor.py".
	Script string

	// TempDir is where documents are staged. Empty uses os.TempDir().
	TempDir string

	// Timeout bounds one invocation. Default DefaultScriptTimeout.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c *ProcessConfig) applyDefaults() {
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = "scripts"
	}
	if c.Script == "" {
		c.Script = "command_processor.py"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultScriptTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ProcessMutator runs the external mutation engine as a subprocess.
//
// # Description
//
// For each command the document is staged to a temp file and the engine is
// invoked as:
//
//	<python> <scripts>/<script> <doc path> <command JSON>
//
// The engine edits the file in place and prints a single JSON object,
// {"status":"success"} or {"status":"error","message":"..."}. On success
// the file is read back as the new handle.
//
// The command handed to the engine is addressed to the staged file path
// rather than the base64 handle, which keeps argv small.
//
// # Thread Safety
//
// Safe for concurrent use. Each call stages its own file.
type ProcessMutator struct {
	cfg ProcessConfig
}

// NewProcessMutator creates a subprocess-backed mutator.
func NewProcessMutator(cfg ProcessConfig) *ProcessMutator {
	cfg.applyDefaults()
	return &ProcessMutator{cfg: cfg}
}

// engineReply is the single JSON line printed by the engine.
type engineReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Mutate implements Mutator.
func (p *ProcessMutator) Mutate(ctx context.Context, handle string, cmd commands.Command) (string, error) {
	path, release, err := Stage(p.cfg.TempDir, handle)
	defer release()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(cmd.WithDocument(path))
	if err != nil {
		return "", fmt.Errorf("encode command: %w", err)
	}

	if err := p.run(ctx, path, string(payload)); err != nil {
		return "", err
	}
	return Collect(path)
}

// run invokes the engine and interprets its reply.
func (p *ProcessMutator) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	script := filepath.Join(p.cfg.ScriptsDir, p.cfg.Script)
	argv := append([]string{script}, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.cfg.Python, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	p.cfg.Logger.Debug("Mutation engine finished",
		"script", script,
		"duration_ms", time.Since(start).Milliseconds(),
		"exit_error", runErr)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ExecutionError{Message: fmt.Sprintf("command processor timed out after %s", p.cfg.Timeout)}
	}

	reply, parseErr := parseReply(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = runErr.Error()
			}
			return &ExecutionError{Message: fmt.Sprintf("command processor failed: %s", msg)}
		}
		return &ExecutionError{Message: fmt.Sprintf("command processor returned unreadable output: %v", parseErr)}
	}

	switch reply.Status {
	case "success":
		return nil
	case "error":
		msg := reply.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return &ExecutionError{Message: msg}
	default:
		return &ExecutionError{Message: fmt.Sprintf("command processor returned unknown status %q", reply.Status)}
	}
}

// parseReply decodes the last non-empty stdout line, ignoring any earlier
// diagnostic output from the engine.
func parseReply(out []byte) (engineReply, error) {
	var reply engineReply
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return reply, errors.New("empty output")
	}
	if err := json.Unmarshal([]byte(last), &reply); err != nil {
		return reply, err
	}
	return reply, nil
}

var _ Mutator = (*ProcessMutator)(nil)
