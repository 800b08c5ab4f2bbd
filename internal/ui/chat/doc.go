// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat modal for docchat.

The model opens a session through a widget.Controller and mirrors it on
screen. Session notifications arrive on another goroutine, so a bridge
subscribes to the session and hands snapshots to the Bubble Tea loop one at
a time.

# Key Components

## Model (model.go)

Holds the session, the last snapshot, and the viewport/input/spinner
components. Init opens the session for the configured domain.

## Update Loop (update.go)

  - Enter sends the input (or runs a /command)
  - Tab/Esc switches focus between the input and the transcript
  - In the transcript: [ and ] select an answer, + and - rate it,
    d toggles sources, q closes
  - Ctrl+R starts a new conversation, Ctrl+C closes the chat

## Streaming (streaming.go)

StreamingBuffer keeps only the newest snapshot and releases it at most
MaxFPS times per second, so glamour runs once per frame rather than once per
chunk. The final snapshot of a stream is always flushed.

## View (view.go)

Answers are rendered from their markdown source through glamour and cached
per message. Sources show title, a 150-cell excerpt and the relevance score.

# Usage

	ctrl := widget.NewController(deps)
	m := chat.New(chat.Options{Controller: ctrl, Domain: "billing"})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
*/
package chat
