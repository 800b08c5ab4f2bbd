// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewThemeForcedModes(t *testing.T) {
	if theme := NewTheme("dark"); !theme.IsDark {
		t.Error(`NewTheme("dark") should be dark`)
	}
	if theme := NewTheme("light"); theme.IsDark {
		t.Error(`NewTheme("light") should be light`)
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewTheme("dark")

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserBubble", theme.UserBubble},
		{"AssistantBubble", theme.AssistantBubble},
		{"ErrorBubble", theme.ErrorBubble},
		{"DocCard", theme.DocCard},
		{"DocTitle", theme.DocTitle},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
	}

	for _, s := range styles {
		if rendered := s.style.Render("test"); !strings.Contains(rendered, "test") {
			t.Errorf("%s style lost its content: %q", s.name, rendered)
		}
	}
}

func TestLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}

	theme := NewTheme("dark")
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: got %v, want %v", tt.width, got, tt.want)
		}
	}
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestRenderStatusIncludesIndicator(t *testing.T) {
	if got := RenderStatus(true, "saved"); !strings.Contains(got, StatusIndicators.Success) {
		t.Errorf("success output missing indicator: %q", got)
	}
	if got := RenderStatus(false, "failed"); !strings.Contains(got, StatusIndicators.Error) {
		t.Errorf("error output missing indicator: %q", got)
	}
	if got := RenderWarning("careful"); !strings.Contains(got, "careful") {
		t.Errorf("warning output missing message: %q", got)
	}
}

func TestSpinnerBubble(t *testing.T) {
	sp := LineSpinner.Bubble()
	if len(sp.Frames) != 4 {
		t.Errorf("frames = %d, want 4", len(sp.Frames))
	}
	if sp.FPS != 100*time.Millisecond {
		t.Errorf("interval = %v, want 100ms", sp.FPS)
	}
	if (SpinnerConfig{}).Interval() != 100*time.Millisecond {
		t.Error("zero FPS should fall back to 10 frames per second")
	}
}
