// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the docchat TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. NewTheme accepts "dark" or "light" to force a background when
detection is wrong (for example inside tmux).

# Color System (colors.go)

  - Purple - assistant messages and selection
  - Cyan - header and user messages
  - Emerald / Rose - positive and negative feedback, success and errors
  - Amber - relevance scores and warnings

Status helpers (RenderSuccess, RenderError, ...) always prefix an ASCII
indicator so meaning never depends on color alone.

# Theme System (theme.go)

	theme := styles.NewTheme("auto")
	bubble := theme.AssistantBubble.Width(72).Render(answer)

# Spinners (animations.go)

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubble()
*/
package styles
