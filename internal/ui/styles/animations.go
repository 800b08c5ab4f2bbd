// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNERS
// =============================================================================

// SpinnerConfig is a frame set and its frame rate.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// LineSpinner - ASCII rotation, works in every terminal
var LineSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}

// DotsSpinner - growing dots for the "thinking" line
var DotsSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", "   "},
	FPS:    4,
}

// Interval returns the time between frames.
func (s SpinnerConfig) Interval() time.Duration {
	if s.FPS <= 0 {
		return time.Second / 10
	}
	return time.Second / time.Duration(s.FPS)
}

// Bubble converts the config to a bubbles spinner definition.
func (s SpinnerConfig) Bubble() spinner.Spinner {
	return spinner.Spinner{Frames: s.Frames, FPS: s.Interval()}
}

// StreamingCursor is appended to an answer while it is still streaming.
const StreamingCursor = "_"
