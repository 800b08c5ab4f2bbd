// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders assistant answers.
//
// HTMLRenderer produces the HTML stored in the transcript (goldmark with
// GFM, chroma classes on fenced code, bluemonday sanitizing). The session
// calls it on the full accumulated markdown after every prose chunk, so an
// unterminated construct such as an open code fence renders correctly once
// its closing half arrives. TerminalRenderer produces ANSI output via
// glamour for the command-line views.
package markdown
