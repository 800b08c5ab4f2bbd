// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/docchat/internal/storage"
)

// Resolver is what Preferences needs from a Locator.
type Resolver interface {
	Locate(ctx context.Context) Location
}

// Preferences tracks whether the user was asked for their location and the
// location they agreed to share. The saved location survives restarts; a
// denial only clears the in-memory value.
type Preferences struct {
	mu       sync.Mutex
	kv       storage.KV
	keys     storage.Keys
	resolver Resolver
	current  Location
	loaded   bool
}

// NewPreferences creates preferences over kv using prefix for key names.
func NewPreferences(kv storage.KV, prefix string, resolver Resolver) *Preferences {
	return &Preferences{kv: kv, keys: storage.Keys{Prefix: prefix}, resolver: resolver}
}

// Prompt reports whether the user still has to be asked. The first call
// marks the question as asked, so later calls return false.
func (p *Preferences) Prompt(ctx context.Context) (bool, error) {
	v, err := p.kv.Get(ctx, p.keys.LocationRequested())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if v != "" {
		return false, nil
	}
	if err := p.kv.Set(ctx, p.keys.LocationRequested(), "true"); err != nil {
		return false, fmt.Errorf("mark location requested: %w", err)
	}
	return true, nil
}

// Allow resolves the location now and saves it.
func (p *Preferences) Allow(ctx context.Context) (Location, error) {
	loc := p.resolver.Locate(ctx)

	data, err := json.Marshal(loc)
	if err != nil {
		return loc, err
	}

	p.mu.Lock()
	p.current = loc
	p.loaded = true
	p.mu.Unlock()

	if err := p.kv.Set(ctx, p.keys.UserLocation(), string(data)); err != nil {
		return loc, fmt.Errorf("save location: %w", err)
	}
	return loc, nil
}

// Deny forgets the location for this run.
func (p *Preferences) Deny() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = Location{}
	p.loaded = true
}

// Location returns the current location, loading the saved one on first use.
// A missing or unreadable saved value yields an empty Location.
func (p *Preferences) Location(ctx context.Context) Location {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return p.current
	}
	p.loaded = true

	v, err := p.kv.Get(ctx, p.keys.UserLocation())
	if err != nil || v == "" {
		return p.current
	}
	var loc Location
	if err := json.Unmarshal([]byte(v), &loc); err != nil {
		return p.current
	}
	p.current = loc
	return p.current
}

// Forget removes the saved location and the asked flag.
func (p *Preferences) Forget(ctx context.Context) error {
	p.mu.Lock()
	p.current = Location{}
	p.loaded = true
	p.mu.Unlock()

	if err := p.kv.Delete(ctx, p.keys.UserLocation()); err != nil {
		return err
	}
	return p.kv.Delete(ctx, p.keys.LocationRequested())
}
