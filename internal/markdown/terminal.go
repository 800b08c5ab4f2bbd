// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// TERMINAL RENDERER
// =============================================================================

// TerminalRenderer renders markdown to ANSI text for the CLI and TUI.
// It falls back to the raw markdown if glamour cannot be initialized.
type TerminalRenderer struct {
	mu   sync.Mutex // glamour.TermRenderer is not safe for concurrent use
	tr   *glamour.TermRenderer
	wrap int
}

// NewTerminalRenderer creates a renderer wrapping at wrap columns. When
// styled is false the "notty" style is used, which emits no escape codes.
func NewTerminalRenderer(wrap int, styled bool) *TerminalRenderer {
	if wrap <= 0 {
		wrap = 80
	}
	styleOpt := glamour.WithStandardStyle("notty")
	if styled {
		styleOpt = glamour.WithAutoStyle()
	}
	tr, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wrap))
	if err != nil {
		tr = nil
	}
	return &TerminalRenderer{tr: tr, wrap: wrap}
}

// Render implements Renderer. Errors fall back to the input text.
func (r *TerminalRenderer) Render(md string) string {
	if r.tr == nil {
		return md
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out, err := r.tr.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// Wrap returns the configured wrap width.
func (r *TerminalRenderer) Wrap() int {
	return r.wrap
}
