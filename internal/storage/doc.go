// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable client-side key-value storage.
//
// # Key Types
//
//   - KV: the store interface (Get, Set, Delete, Keys, Close)
//   - SQLiteStore, PebbleStore, FileStore, Memory: backends selected by Open
//   - Keys: prefix-namespaced key names
//   - ConversationIDs: domain to conversation id registry
//
// # Usage
//
//	kv, err := storage.Open(storage.Options{Backend: "sqlite", Dir: dir})
//	ids := storage.NewConversationIDs(kv, "APP")
//	id, ok, err := ids.Get(ctx, "billing")
package storage
