// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	rbadger "github.com/AleutianAI/AleutianRedline/services/redline/storage/badger"
	"github.com/dgraph-io/badger/v4"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Store is the storage backend behind a Tracker.
//
// # Description
//
// Store is a plain key/value mapping from job id to status. It applies no
// lifecycle rules; those live in Tracker. Writes are last-write-wins.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
//
// # Limitations
//
//   - No TTL or eviction. Entries live until the process (or the database)
//     is discarded.
type Store interface {
	// Put stores status under status.ID, replacing any previous value.
	Put(ctx context.Context, status datatypes.ProcessingStatus) error

	// Get returns the status for id. The bool is false when id is unknown.
	Get(ctx context.Context, id string) (datatypes.ProcessingStatus, bool, error)

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// In-Memory Store
// =============================================================================

// MemoryStore keeps statuses in a mutex-guarded map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]datatypes.ProcessingStatus
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]datatypes.ProcessingStatus)}
}

func (m *MemoryStore) Put(_ context.Context, status datatypes.ProcessingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[status.ID] = status
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (datatypes.ProcessingStatus, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.entries[id]
	return status, ok, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of tracked ids.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// =============================================================================
// BadgerDB Store
// =============================================================================

const badgerKeyPrefix = "status/"

// BadgerStore persists statuses as JSON values in BadgerDB under
// "status/<id>".
type BadgerStore struct {
	db *rbadger.DB
}

// NewBadgerStore wraps an open database. The store owns db and closes it.
func NewBadgerStore(db *rbadger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens a database with cfg and wraps it.
func OpenBadgerStore(cfg rbadger.Config) (*BadgerStore, error) {
	db, err := rbadger.Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewBadgerStore(db), nil
}

func (b *BadgerStore) Put(ctx context.Context, status datatypes.ProcessingStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status %s: %w", status.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+status.ID), value)
	})
}

func (b *BadgerStore) Get(ctx context.Context, id string) (datatypes.ProcessingStatus, bool, error) {
	var status datatypes.ProcessingStatus
	if err := ctx.Err(); err != nil {
		return status, false, err
	}

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &status)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.ProcessingStatus{}, false, nil
	}
	if err != nil {
		return datatypes.ProcessingStatus{}, false, fmt.Errorf("read status %s: %w", id, err)
	}
	return status, true, nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BadgerStore)(nil)
)
