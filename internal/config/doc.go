// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for docchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Conversation service endpoint, timeout and rate limit
//   - ChatConfig: Default domain, key prefix, error text and sentinel mode
//   - StorageConfig: Key-value backend selection
//   - LocationConfig: Device fix override and IP provider chain
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DOCCHAT_*), including a .env file in the
//     working directory
//   - $DOCCHAT_HOME/config.toml
//   - $DOCCHAT_HOME/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Change a value by key:
//
//	_ = cfg.Set("api.base_url", "https://docs.example.com")
//	_ = config.Save(cfg)
package config
