// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geo resolves the approximate user location attached to search
// requests and remembers the user's consent.
package geo
