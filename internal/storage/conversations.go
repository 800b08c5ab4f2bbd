// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"strings"
)

// DefaultPrefix namespaces every key docchat writes.
const DefaultPrefix = "APP"

// =============================================================================
// KEY NAMING
// =============================================================================

// Keys builds the flat key names for one prefix.
type Keys struct {
	Prefix string
}

func (k Keys) join(name string) string {
	if k.Prefix == "" {
		return name
	}
	return k.Prefix + "_" + name
}

// Conversation is the key holding the active conversation id for domain.
func (k Keys) Conversation(domain string) string {
	return k.join("conversation_" + domain)
}

// ConversationPrefix is the common prefix of every Conversation key.
func (k Keys) ConversationPrefix() string {
	return k.join("conversation_")
}

// UserLocation is the key holding the saved location JSON.
func (k Keys) UserLocation() string {
	return k.join("userLocation")
}

// LocationRequested is the key set once the user has been asked for location.
func (k Keys) LocationRequested() string {
	return k.join("locationRequested")
}

// =============================================================================
// CONVERSATION ID REGISTRY
// =============================================================================

// ConversationIDs maps chat domains to their persisted conversation id.
// This is the only resumption key: reopening a domain loads whatever id is
// stored here.
type ConversationIDs struct {
	kv   KV
	keys Keys
}

// NewConversationIDs creates a registry over kv using prefix for key names.
func NewConversationIDs(kv KV, prefix string) *ConversationIDs {
	return &ConversationIDs{kv: kv, keys: Keys{Prefix: prefix}}
}

// Get returns the id for domain. ok is false when nothing is stored.
func (c *ConversationIDs) Get(ctx context.Context, domain string) (id string, ok bool, err error) {
	v, err := c.kv.Get(ctx, c.keys.Conversation(domain))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Set stores id for domain.
func (c *ConversationIDs) Set(ctx context.Context, domain, id string) error {
	return c.kv.Set(ctx, c.keys.Conversation(domain), id)
}

// Remove forgets the id for domain. Other domains are untouched.
func (c *ConversationIDs) Remove(ctx context.Context, domain string) error {
	return c.kv.Delete(ctx, c.keys.Conversation(domain))
}

// Domains lists every domain with a stored id.
func (c *ConversationIDs) Domains(ctx context.Context) ([]string, error) {
	prefix := c.keys.ConversationPrefix()
	keys, err := c.kv.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	domains := make([]string, 0, len(keys))
	for _, k := range keys {
		domains = append(domains, strings.TrimPrefix(k, prefix))
	}
	return domains, nil
}
