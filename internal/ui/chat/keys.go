// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat view. Bindings marked
// transcript only apply while the transcript has focus, since the input
// field would otherwise swallow them.
type KeyMap struct {
	// Global
	Quit        key.Binding
	Reset       key.Binding
	ToggleFocus key.Binding
	PageUp      key.Binding
	PageDown    key.Binding

	// Input
	Submit key.Binding

	// Transcript
	Up         key.Binding
	Down       key.Binding
	Home       key.Binding
	End        key.Binding
	PrevAnswer key.Binding
	NextAnswer key.Binding
	RateUp     key.Binding
	RateDown   key.Binding
	ToggleDocs key.Binding
	Close      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "close"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "new conversation"),
		),
		ToggleFocus: key.NewBinding(
			key.WithKeys("tab", "esc"),
			key.WithHelp("Tab", "switch focus"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn", "page down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("j", "scroll down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
		PrevAnswer: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous answer"),
		),
		NextAnswer: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next answer"),
		),
		RateUp: key.NewBinding(
			key.WithKeys("+", "y"),
			key.WithHelp("+", "helpful"),
		),
		RateDown: key.NewBinding(
			key.WithKeys("-", "n"),
			key.WithHelp("-", "not helpful"),
		),
		ToggleDocs: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "sources"),
		),
		Close: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "close"),
		),
	}
}

// InputHelp returns the bindings shown in the status bar while typing.
func (k KeyMap) InputHelp() []key.Binding {
	return []key.Binding{k.Submit, k.ToggleFocus, k.Reset, k.Quit}
}

// TranscriptHelp returns the bindings shown while the transcript has focus.
func (k KeyMap) TranscriptHelp() []key.Binding {
	return []key.Binding{k.PrevAnswer, k.NextAnswer, k.RateUp, k.RateDown, k.ToggleDocs, k.ToggleFocus, k.Close}
}
