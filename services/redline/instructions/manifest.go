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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestSource reads instructions from a YAML or JSON file.
//
// Either a bare list or an object with an "instructions" key is accepted:
//
//	instructions:
//	  - contract: Contract 1.docx
//	    instruction: Add the indemnity clause to section 4
//	    clause: The Supplier shall indemnify...
//
// JSON is read through the same YAML decoder.
type ManifestSource struct {
	Path string
}

type manifest struct {
	Instructions []Instruction `yaml:"instructions"`
}

// Instructions implements Source.
func (m *ManifestSource) Instructions(ctx context.Context) ([]Instruction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("read instruction manifest: %w", err)
	}
	list, err := decodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("parse instruction manifest %s: %w", m.Path, err)
	}
	for i, inst := range list {
		if inst.Contract == "" || inst.Text == "" {
			return nil, fmt.Errorf("instruction %d: contract and instruction are required", i)
		}
	}
	return list, nil
}

func decodeManifest(data []byte) ([]Instruction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Instruction{}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(trimmed, &root); err != nil {
		return nil, err
	}
	if len(root.Content) > 0 && root.Content[0].Kind == yaml.SequenceNode {
		var list []Instruction
		if err := root.Content[0].Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var doc manifest
	if err := root.Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Instructions == nil {
		doc.Instructions = []Instruction{}
	}
	return doc.Instructions, nil
}

var _ Source = (*ManifestSource)(nil)
