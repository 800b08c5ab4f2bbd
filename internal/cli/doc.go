// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the docchat command tree.
//
// Commands:
//
//	docchat [chat]             Full-screen chat modal (default)
//	docchat ask <question>     One question, answer printed to stdout
//	docchat repl               Line-mode chat with history
//	docchat show [domain]      Print the persisted conversation
//	docchat reset [domain]     Forget the conversation for a domain
//	docchat feedback <id> up   Rate an answer by message id
//	docchat location ...       Manage the location sent with questions
//	docchat config ...         Inspect and edit ~/.docchat/config.toml
//
// Global flags (--config, --domain, --storage, --log-level, --metrics-addr,
// --json) override the loaded configuration for a single run.
package cli
