// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire types shared by the pipeline, the status
// tracker and the HTTP surface.
package datatypes

// State is the lifecycle state of a job or instruction.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ChangeType classifies a Change record.
type ChangeType string

const (
	ChangeReplace ChangeType = "replace"
	ChangeAdd     ChangeType = "add"
	ChangeDelete  ChangeType = "delete"
)

// Change records one applied edit. It is derived from the executed command,
// never reported by the mutation engine.
type Change struct {
	Type    ChangeType `json:"type"`
	Text    string     `json:"text"`
	OldText string     `json:"oldText,omitempty"`
	Section string     `json:"section,omitempty"`
}

// Result is the payload of a terminal status.
//
// Document is set on completion, Error on failure.
type Result struct {
	Document string   `json:"document,omitempty"`
	Error    string   `json:"error,omitempty"`
	Changes  []Change `json:"changes,omitempty"`
}

// ProcessingStatus is the tracked state of one job or one instruction.
type ProcessingStatus struct {
	ID     string  `json:"id"`
	Status State   `json:"status"`
	Result *Result `json:"result,omitempty"`
}

// Processing returns the initial status for id.
func Processing(id string) ProcessingStatus {
	return ProcessingStatus{ID: id, Status: StateProcessing}
}

// Completed returns a completed status carrying the final document.
func Completed(id, document string, changes []Change) ProcessingStatus {
	if changes == nil {
		changes = []Change{}
	}
	return ProcessingStatus{
		ID:     id,
		Status: StateCompleted,
		Result: &Result{Document: document, Changes: changes},
	}
}

// Failed returns a failed status carrying the error message.
func Failed(id, message string) ProcessingStatus {
	if message == "" {
		message = "Unknown error"
	}
	return ProcessingStatus{
		ID:     id,
		Status: StateFailed,
		Result: &Result{Error: message},
	}
}
