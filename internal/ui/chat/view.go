// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/ui/styles"
	"github.com/jeranaias/docchat/internal/util"
)

// ExcerptWidth is the number of display cells of document content shown in
// a source card.
const ExcerptWidth = 150

// =============================================================================
// LAYOUT
// =============================================================================

// renderChat stacks header, transcript, input and status bar. Heights are
// measured so a mismatch with handleResize cannot break the layout.
func (m Model) renderChat() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	input := m.renderInput()
	status := m.renderStatusBar()

	available := m.height - lipgloss.Height(header) - lipgloss.Height(input) - lipgloss.Height(status)
	if available < 1 {
		available = 1
	}

	messages := m.viewport.View()
	if lipgloss.Height(messages) != available {
		messages = lipgloss.NewStyle().
			Height(available).
			MaxHeight(available).
			Width(m.width).
			Render(messages)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, messages, input, status)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.Title())

	var sub string
	switch {
	case !m.opened:
		sub = "connecting..."
	case m.snap.ConversationID != "":
		sub = "conversation " + util.TruncateWidth(m.snap.ConversationID, 24)
	default:
		sub = "new conversation"
	}

	line := title + "  " + m.theme.HeaderSubtitle.Render(sub)
	return m.theme.Header.Width(m.width).MaxHeight(1).Render(line)
}

func (m Model) renderInput() string {
	style := m.theme.InputContainer.Width(max(m.width-2, 1))
	if m.focus != FocusInput {
		style = style.BorderForeground(styles.TextMuted)
	}
	return style.Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.statusMsg != "":
		left = m.statusMsg
	case m.snap.Loading:
		left = m.spinner.View() + " " + m.theme.ThinkingText.Render(stateLabel(m.snap.State))
	default:
		left = m.renderShortcuts()
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(left)
}

func (m Model) renderShortcuts() string {
	bindings := m.keyMap.InputHelp()
	if m.focus == FocusTranscript {
		bindings = m.keyMap.TranscriptHelp()
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, shortcut(m.theme, b))
	}
	return strings.Join(parts, "  ")
}

func shortcut(theme *styles.Theme, b key.Binding) string {
	h := b.Help()
	return theme.ShortcutKey.Render(h.Key) + " " + theme.ShortcutDesc.Render(h.Desc)
}

func stateLabel(s session.State) string {
	switch s {
	case session.StateAwaitingConversation:
		return "Starting conversation..."
	case session.StateStreaming:
		return "Answering..."
	default:
		return ""
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderMessages renders the whole transcript for the viewport.
func (m Model) renderMessages() string {
	width := max(m.viewport.Width-2, 20)

	if len(m.snap.Messages) == 0 {
		text := "Ask a question about the documentation."
		if !m.opened {
			text = "Loading conversation..."
		}
		return m.theme.EmptyState.Render(text)
	}

	seen := make(map[string]bool, len(m.snap.Messages))
	blocks := make([]string, 0, len(m.snap.Messages))
	for i, msg := range m.snap.Messages {
		seen[msg.ID] = true
		blocks = append(blocks, m.renderMessage(i, msg, width))
	}
	for id := range m.cache {
		if !seen[id] {
			delete(m.cache, id)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(index int, msg *model.Message, width int) string {
	label := m.theme.UserLabel.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleAssistant {
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	if index == m.selected {
		label = m.theme.Selected.Render("> ") + label
	}
	if !msg.CreatedAt.IsZero() {
		label += " " + m.theme.Timestamp.Render(humanize.Time(msg.CreatedAt))
	}

	var body string
	switch {
	case msg.Role == model.RoleUser:
		body = m.theme.UserBubble.Width(max(width-6, 10)).Render(msg.Content)
	case msg.IsError:
		body = m.theme.ErrorBubble.Render(styles.StatusIndicators.Error + " " + msg.Content)
	case msg.IsEmpty() && msg.IsStreaming:
		body = m.theme.AssistantBubble.Render(m.theme.ThinkingText.Render("Thinking..."))
	default:
		text := strings.TrimRight(m.renderMarkdown(msg, width), "\n")
		if msg.IsStreaming {
			text += styles.StreamingCursor
		}
		body = m.theme.AssistantBubble.Render(text)
	}

	parts := []string{label, body}
	if msg.Role == model.RoleAssistant && !msg.IsStreaming {
		if docs := m.renderDocs(msg.SupportingDocs, width); docs != "" {
			parts = append(parts, docs)
		}
		if msg.CanRate() {
			parts = append(parts, m.renderFeedback(msg.Feedback))
		}
	}
	return strings.Join(parts, "\n")
}

// renderMarkdown renders an answer through glamour, reusing the previous
// output while the source and width are unchanged.
func (m Model) renderMarkdown(msg *model.Message, width int) string {
	source := msg.DisplayText()
	if cached, ok := m.cache[msg.ID]; ok && cached.source == source && cached.width == width {
		return cached.out
	}
	out := m.renderer.Render(source)
	m.cache[msg.ID] = renderedMessage{source: source, width: width, out: out}
	return out
}

func (m Model) renderFeedback(f model.Feedback) string {
	up := m.theme.FeedbackIdle.Render(styles.StatusIndicators.Up + " helpful")
	down := m.theme.FeedbackIdle.Render(styles.StatusIndicators.Down + " not helpful")
	switch f {
	case model.FeedbackPositive:
		up = m.theme.FeedbackPositive.Render(styles.StatusIndicators.Up + " helpful")
	case model.FeedbackNegative:
		down = m.theme.FeedbackNegative.Render(styles.StatusIndicators.Down + " not helpful")
	}
	return up + "  " + down
}

// =============================================================================
// SUPPORTING DOCUMENTS
// =============================================================================

func (m Model) renderDocs(docs []model.SupportingDocument, width int) string {
	if len(docs) == 0 {
		return ""
	}
	if !m.showDocs {
		return m.theme.Timestamp.Render(fmt.Sprintf("%d %s hidden (press d)", len(docs), plural(len(docs), "source", "sources")))
	}

	cards := make([]string, 0, len(docs)+1)
	cards = append(cards, m.theme.DocsHeader.Render("Sources"))
	for _, doc := range docs {
		cards = append(cards, m.theme.DocCard.Width(max(width-4, 10)).Render(FormatDoc(m.theme, doc)))
	}
	return strings.Join(cards, "\n")
}

// FormatDoc renders one source: title, a 150-cell excerpt and the relevance
// score when the server sent one.
func FormatDoc(theme *styles.Theme, doc model.SupportingDocument) string {
	lines := []string{theme.DocTitle.Render(doc.DisplayTitle())}
	if excerpt := util.Excerpt(doc.Content, ExcerptWidth); excerpt != "" {
		lines = append(lines, theme.DocExcerpt.Render(excerpt))
	}
	if doc.HasScore() {
		lines = append(lines, theme.DocScore.Render("Relevance: "+doc.ScoreLabel()))
	}
	return strings.Join(lines, "\n")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
