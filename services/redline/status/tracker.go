// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package status tracks the lifecycle of submitted jobs.
//
// A status is created in the processing state when a job starts and moves
// exactly once to completed or failed. The Tracker enforces that rule on top
// of a pluggable Store, so a long-running job can be decoupled from the
// request that started it and polled later.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
)

var (
	// ErrTerminal is returned when a lifecycle transition targets a status
	// that is already completed or failed.
	ErrTerminal = errors.New("status is already terminal")

	// ErrUnknown is returned when a terminal transition targets an id that
	// was never started.
	ErrUnknown = errors.New("status was never started")
)

// Tracker maps job ids to their current status.
//
// # Description
//
// Set and Get are the raw last-write-wins mapping. Begin and Finish layer
// the job lifecycle on top: Begin records processing, Finish records the
// single terminal state and refuses to overwrite one.
//
// # Thread Safety
//
// Safe for concurrent use. Lifecycle transitions are serialized by a
// tracker-wide mutex so two finishers cannot both win.
//
// # Limitations
//
//   - No eviction. A production deployment needs a TTL on its Store.
type Tracker struct {
	store Store
	mu    sync.Mutex
}

// NewTracker creates a tracker over store. A nil store uses a MemoryStore.
func NewTracker(store Store) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{store: store}
}

// Set stores status unconditionally.
func (t *Tracker) Set(ctx context.Context, status datatypes.ProcessingStatus) error {
	if status.ID == "" {
		return errors.New("status id is required")
	}
	return t.store.Put(ctx, status)
}

// Get returns the status for id, with false when id is unknown.
func (t *Tracker) Get(ctx context.Context, id string) (datatypes.ProcessingStatus, bool, error) {
	return t.store.Get(ctx, id)
}

// Begin records id as processing.
func (t *Tracker) Begin(ctx context.Context, id string) (datatypes.ProcessingStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok, err := t.store.Get(ctx, id); err != nil {
		return datatypes.ProcessingStatus{}, err
	} else if ok && current.Status.Terminal() {
		return current, fmt.Errorf("begin %s: %w", id, ErrTerminal)
	}

	initial := datatypes.Processing(id)
	if err := t.store.Put(ctx, initial); err != nil {
		return datatypes.ProcessingStatus{}, err
	}
	return initial, nil
}

// Finish records the terminal status for final.ID.
//
// # Outputs
//
//   - error: ErrUnknown if the id was never begun, ErrTerminal if it has
//     already finished, or a store error. Not-terminal inputs are rejected.
func (t *Tracker) Finish(ctx context.Context, final datatypes.ProcessingStatus) error {
	if !final.Status.Terminal() {
		return fmt.Errorf("finish %s: %q is not a terminal state", final.ID, final.Status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok, err := t.store.Get(ctx, final.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("finish %s: %w", final.ID, ErrUnknown)
	}
	if current.Status.Terminal() {
		return fmt.Errorf("finish %s: %w", final.ID, ErrTerminal)
	}
	return t.store.Put(ctx, final)
}

// Complete finishes id as completed with the final document and changes.
func (t *Tracker) Complete(ctx context.Context, id, document string, changes []datatypes.Change) error {
	return t.Finish(ctx, datatypes.Completed(id, document, changes))
}

// Fail finishes id as failed with message.
func (t *Tracker) Fail(ctx context.Context, id, message string) error {
	return t.Finish(ctx, datatypes.Failed(id, message))
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}
