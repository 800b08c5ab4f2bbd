// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across docchat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes, TruncateWidth: UTF-8 safe truncation with ellipsis
//   - Excerpt: whitespace-collapsed preview used for supporting documents
//   - Capitalize: upper-case the first rune (assistant titles)
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	preview := util.Excerpt(doc.Content, 150)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
