// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package commands defines the document-mutation command model and the rules
// that decide whether a command is well formed.
//
// # Description
//
// A Command is the structured form of a single edit (insert, modify, delete)
// at a located position in a document. Commands are produced by the reasoning
// collaborator from free text, checked by Validate, and executed one at a time
// by the mutation collaborator.
//
// The JSON shape is the wire contract shared with the LLM prompts and the
// python mutation engine, so field names are camelCase and must not change.
//
// # Thread Safety
//
// Commands are plain values. Validate is pure and safe for concurrent use.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Action is the kind of edit a command performs.
type Action string

const (
	ActionInsert Action = "insert"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// RequiresContent reports whether the action needs a ContentSpecification.
func (a Action) RequiresContent() bool {
	return a == ActionInsert || a == ActionModify
}

// LocationType discriminates the Location union.
type LocationType string

const (
	LocationHeading   LocationType = "heading"
	LocationSection   LocationType = "section"
	LocationSentence  LocationType = "sentence"
	LocationParagraph LocationType = "paragraph"
)

// Position says where, relative to the located element, the edit applies.
//
// heading, sentence and paragraph locations use before/after/replace;
// section locations use start/end/replace.
type Position string

const (
	PositionBefore  Position = "before"
	PositionAfter   Position = "after"
	PositionReplace Position = "replace"
	PositionStart   Position = "start"
	PositionEnd     Position = "end"
)

// Alignment is a paragraph alignment.
type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// SectionRef is a section identifier that may arrive as a JSON string ("11.2")
// or a JSON number (11). It is carried and re-encoded as its string form.
type SectionRef string

// UnmarshalJSON accepts either a string or a number.
func (s *SectionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SectionRef(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("section reference must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(num.String(), 64); err != nil {
		return fmt.Errorf("section reference must be a string or number: %w", err)
	}
	*s = SectionRef(num.String())
	return nil
}

// present reports whether the reference names a section. Empty and numeric
// zero references are absent, matching the 1-based paragraph and sentence
// ordinals.
func (s SectionRef) present() bool {
	if s == "" {
		return false
	}
	if f, err := strconv.ParseFloat(string(s), 64); err == nil && f == 0 {
		return false
	}
	return true
}

// String returns the section reference as text.
func (s SectionRef) String() string {
	return string(s)
}

// Location identifies where in a document an operation applies.
//
// It is the single tagged union for all location variants. Type selects the
// variant and decides which of the remaining fields are meaningful:
//
//   - heading:   Value, Position, MatchLevel
//   - section:   Number, Position
//   - sentence:  Section, Paragraph, SentenceNumber, MatchText, Position
//   - paragraph: Section, ParagraphNumber, MatchText, Position
type Location struct {
	Type     LocationType `json:"type"`
	Position Position     `json:"position"`

	Value      string `json:"value,omitempty"`
	MatchLevel *bool  `json:"matchLevel,omitempty"`

	Number SectionRef `json:"number,omitempty"`

	Section         SectionRef `json:"section,omitempty"`
	Paragraph       *int       `json:"paragraph,omitempty"`
	SentenceNumber  *int       `json:"sentenceNumber,omitempty"`
	ParagraphNumber *int       `json:"paragraphNumber,omitempty"`
	MatchText       string     `json:"matchText,omitempty"`
}

// Spacing holds paragraph spacing in points. Nil means "leave unchanged".
type Spacing struct {
	Before *float64 `json:"before,omitempty"`
	After  *float64 `json:"after,omitempty"`
	Line   *float64 `json:"line,omitempty"`
}

// SpecificStyle lists explicit formatting overrides.
type SpecificStyle struct {
	Font      string    `json:"font,omitempty"`
	Size      *float64  `json:"size,omitempty"`
	Bold      *bool     `json:"bold,omitempty"`
	Italic    *bool     `json:"italic,omitempty"`
	Underline *bool     `json:"underline,omitempty"`
	Color     string    `json:"color,omitempty"`
	Style     string    `json:"style,omitempty"`
	Spacing   *Spacing  `json:"spacing,omitempty"`
	Alignment Alignment `json:"alignment,omitempty"`
}

// StyleRequirements describes how inserted or modified text is styled.
//
// MatchSource inherits styling from the surrounding text. Specific overrides
// are applied on top when both are present.
type StyleRequirements struct {
	MatchSource bool           `json:"matchSource,omitempty"`
	Specific    *SpecificStyle `json:"specific,omitempty"`
}

// ContentSpecification is the text written by insert and modify commands.
type ContentSpecification struct {
	Text  string            `json:"text"`
	Style StyleRequirements `json:"style"`
}

// PreConditions must hold on the document before a command runs.
type PreConditions struct {
	MustExist    []string `json:"mustExist,omitempty"`
	MustNotExist []string `json:"mustNotExist,omitempty"`
}

// PostConditions should hold on the document after a command runs.
type PostConditions struct {
	ShouldExist    []string `json:"shouldExist,omitempty"`
	ShouldNotExist []string `json:"shouldNotExist,omitempty"`
}

// Conditions groups the optional pre and post checks the mutation engine
// evaluates around a command.
type Conditions struct {
	PreConditions  *PreConditions  `json:"preConditions,omitempty"`
	PostConditions *PostConditions `json:"postConditions,omitempty"`
}

// Command is a single document mutation.
//
// DocumentID is an opaque handle: a path, or an encoded document blob once
// the orchestrator threads documents between commands.
type Command struct {
	DocumentID string                `json:"documentId"`
	Action     Action                `json:"action"`
	Location   Location              `json:"location"`
	Content    *ContentSpecification `json:"content,omitempty"`
	Validation *Conditions           `json:"validation,omitempty"`
}

// WithDocument returns a copy of the command addressed to another handle.
func (c Command) WithDocument(handle string) Command {
	c.DocumentID = handle
	return c
}
