// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
)

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("command validation failed")

// ValidationError reports a malformed or policy-violating command.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// conditionFields maps JSON paths of the condition lists to their short names.
var conditionFields = map[string]string{
	"validation.preConditions.mustExist":       "mustExist",
	"validation.preConditions.mustNotExist":    "mustNotExist",
	"validation.postConditions.shouldExist":    "shouldExist",
	"validation.postConditions.shouldNotExist": "shouldNotExist",
}

// Decode parses a JSON command.
//
// # Description
//
// Decoding is lenient about unknown fields. A condition list that is not an
// array of strings is reported as a ValidationError naming the field, which
// is how the "ordered sequence of strings" rule is enforced on wire input.
// Any other decoding failure is also a ValidationError. Decode does not run
// Validate.
//
// # Inputs
//
//   - data: JSON object bytes.
//
// # Outputs
//
//   - Command: The decoded command.
//   - error: *ValidationError on malformed input.
func Decode(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if name, ok := conditionFields[typeErr.Field]; ok {
				// An element error reports the element type, not the list type.
				if typeErr.Type != nil && typeErr.Type.Kind() == reflect.String {
					return Command{}, invalid("%s must be an array of strings", name)
				}
				return Command{}, invalid("%s must be an array", name)
			}
		}
		return Command{}, invalid("malformed command: %v", err)
	}
	return cmd, nil
}

// Validate checks a command's structure and semantics.
//
// # Description
//
// Runs the structural, location, content and style checks in that order and
// returns the first violation. A nil return means the command can be handed
// to the mutation collaborator. The shape of the condition lists is checked
// by Decode, since a typed Command cannot hold a non-array there.
//
// # Outputs
//
//   - error: *ValidationError describing the first violated rule, or nil.
//
// # Examples
//
//	if err := commands.Validate(cmd); err != nil {
//	    return fmt.Errorf("rejecting command: %w", err)
//	}
func Validate(cmd Command) error {
	if cmd.DocumentID == "" {
		return invalid("Command must specify documentId")
	}
	if cmd.Action == "" {
		return invalid("Command must specify action")
	}
	switch cmd.Action {
	case ActionInsert, ActionModify, ActionDelete:
	default:
		return invalid("Unknown action: %s", cmd.Action)
	}

	if err := ValidateLocation(cmd.Location); err != nil {
		return err
	}

	if cmd.Action.RequiresContent() && cmd.Content == nil {
		return invalid("%s action requires content", cmd.Action)
	}
	if cmd.Content != nil {
		if err := ValidateContent(*cmd.Content); err != nil {
			return err
		}
	}

	return nil
}

// Parse decodes and validates a JSON command in one step.
func Parse(data []byte) (Command, error) {
	cmd, err := Decode(data)
	if err != nil {
		return Command{}, err
	}
	if err := Validate(cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// ValidateLocation checks that a location names its variant, its position and
// the locator fields that variant requires.
func ValidateLocation(loc Location) error {
	if loc.Type == "" || loc.Position == "" {
		return invalid("Location must specify type and position")
	}

	switch loc.Type {
	case LocationHeading:
		if loc.Value == "" {
			return invalid("Heading location must specify value")
		}
	case LocationSection:
		if !loc.Number.present() {
			return invalid("Section location must specify number")
		}
	case LocationSentence:
		if loc.MatchText == "" && !positive(loc.SentenceNumber) {
			return invalid("Sentence location must specify either matchText or sentenceNumber")
		}
	case LocationParagraph:
		if loc.MatchText == "" && !positive(loc.ParagraphNumber) {
			return invalid("Paragraph location must specify either matchText or paragraphNumber")
		}
	default:
		return invalid("Unknown location type: %s", loc.Type)
	}
	return nil
}

// positive treats a missing or zero ordinal as absent; ordinals are 1-based.
func positive(n *int) bool {
	return n != nil && *n > 0
}

// ValidateContent checks the text and style of a content specification.
func ValidateContent(content ContentSpecification) error {
	if content.Text == "" {
		return invalid("Content must specify text")
	}
	return ValidateStyle(content.Style)
}

// ValidateStyle checks color format and spacing bounds of explicit styling.
func ValidateStyle(style StyleRequirements) error {
	spec := style.Specific
	if spec == nil {
		return nil
	}

	if spec.Spacing != nil {
		if negative(spec.Spacing.Before) {
			return invalid("Spacing before must be non-negative")
		}
		if negative(spec.Spacing.After) {
			return invalid("Spacing after must be non-negative")
		}
		if negative(spec.Spacing.Line) {
			return invalid("Line spacing must be non-negative")
		}
	}

	if spec.Color != "" && !hexColor.MatchString(spec.Color) {
		return invalid("Color must be in hex format (e.g., #FF0000)")
	}
	return nil
}

func negative(v *float64) bool {
	return v != nil && *v < 0
}
