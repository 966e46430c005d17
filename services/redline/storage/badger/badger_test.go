// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			assert.Equal(t, "v", string(val))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})

	assert.Error(t, err)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "status")
	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("job"), []byte("done"))
	}))
	require.NoError(t, db.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	err = reopened.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("job"))
		return err
	})
	assert.NoError(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/tmp/x")

	assert.Equal(t, "/tmp/x", cfg.Path)
	assert.True(t, cfg.SyncWrites)
	assert.False(t, cfg.InMemory)
	assert.Equal(t, 0.5, cfg.GCDiscardRatio)
}
