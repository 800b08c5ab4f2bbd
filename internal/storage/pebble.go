// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is a KV backend on an embedded Pebble LSM. Unlike SQLite it
// takes an exclusive lock on its directory, so only one process may open it.
type PebbleStore struct {
	db   *pebble.DB
	path string
}

// OpenPebble opens or creates the database directory at path.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}
	return &PebbleStore{db: db, path: path}, nil
}

// Path returns the database directory.
func (p *PebbleStore) Path() string {
	return p.path
}

// Get implements KV.
func (p *PebbleStore) Get(_ context.Context, key string) (string, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer closer.Close()
	// v is only valid until closer.Close.
	return string(v), nil
}

// Set implements KV.
func (p *PebbleStore) Set(_ context.Context, key, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete implements KV.
func (p *PebbleStore) Delete(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys implements KV.
func (p *PebbleStore) Keys(_ context.Context, prefix string) ([]string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	pfx := []byte(prefix)
	var keys []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

// Close implements KV.
func (p *PebbleStore) Close() error {
	return p.db.Close()
}
