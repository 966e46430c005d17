// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package instructions obtains editing instructions and the documents they
// target.
//
// A Source yields the ordered instruction list for a run. A Resolver maps
// the contract named by an instruction to a document handle.
package instructions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Instruction is one natural-language editing request against one contract.
type Instruction struct {
	// Contract names the target document, e.g. "Contract 1.docx".
	Contract string `json:"contract" yaml:"contract"`

	// Text is the editing instruction.
	Text string `json:"instruction" yaml:"instruction"`

	// Clause is optional snippet text the instruction refers to.
	Clause string `json:"clause,omitempty" yaml:"clause,omitempty"`
}

// Key identifies the instruction in run ids and reports: the contract name
// without its .docx extension.
func (i Instruction) Key() string {
	return strings.TrimSuffix(filepath.Base(i.Contract), ".docx")
}

// Prompt is the text handed to the reasoning collaborator. The clause, when
// present, is appended so the model can quote it verbatim.
func (i Instruction) Prompt() string {
	if strings.TrimSpace(i.Clause) == "" {
		return i.Text
	}
	return fmt.Sprintf("%s\n\nClause text:\n%s", i.Text, i.Clause)
}

// Source yields the ordered instruction list for a run.
type Source interface {
	Instructions(ctx context.Context) ([]Instruction, error)
}

// Static is a Source over a fixed list.
type Static []Instruction

// Instructions implements Source.
func (s Static) Instructions(context.Context) ([]Instruction, error) {
	out := make([]Instruction, len(s))
	copy(out, s)
	return out, nil
}

// SourceConfig selects and configures a file-backed Source.
type SourceConfig struct {
	Python     string
	ScriptsDir string
	Timeout    time.Duration
}

// Open returns the Source for the instruction file at path: a manifest for
// .yaml, .yml and .json files, otherwise the instruction document parser.
func Open(path string, cfg SourceConfig) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return &ManifestSource{Path: path}
	default:
		return &ScriptSource{
			Path:       path,
			Python:     cfg.Python,
			ScriptsDir: cfg.ScriptsDir,
			Timeout:    cfg.Timeout,
		}
	}
}

var _ Source = Static(nil)
