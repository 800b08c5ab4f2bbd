// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docchat/internal/markdown"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/ui/styles"
)

const statusTTL = 4 * time.Second

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case OpenedMsg:
		return m.handleOpened(msg)

	case SnapshotMsg:
		return m.handleSnapshot(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case SendDoneMsg:
		if snap, ok := m.buffer.ForceFlush(); ok {
			m.applySnapshot(snap)
		}
		if !msg.Accepted {
			m.statusMsg = styles.RenderWarning("Message not sent: an answer is still streaming")
			return m, clearStatusCmd(statusTTL)
		}
		return m, nil

	case FeedbackDoneMsg:
		if msg.Recorded {
			m.statusMsg = styles.RenderSuccess("Thanks for your feedback")
		} else {
			m.statusMsg = styles.RenderError("Feedback could not be recorded")
		}
		return m, clearStatusCmd(statusTTL)

	case StatusMsg:
		m.statusMsg = string(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Must stay in sync with renderChat. Conservative values keep the
	// viewport from overflowing; renderChat measures and pads the rest.
	const (
		headerHeight    = 1
		inputAreaHeight = 2 // border + input line
		statusBarHeight = 1
	)

	viewportHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = viewportHeight

	const promptLen = 2 // "> "
	m.input.Width = max(m.width-4-promptLen, 10)

	m.theme.SetSize(m.width, m.height)

	// Rebuild the markdown renderer when the usable width changes; glamour
	// fixes its wrap width at construction.
	wrap := min(m.wrap, max(m.width-6, 20))
	if wrap != m.renderer.Wrap() {
		m.renderer = markdown.NewTerminalRenderer(wrap, m.styled)
		m.cache = make(map[string]renderedMessage)
	}

	m.updateViewport()
	return m, nil
}

func (m Model) handleOpened(msg OpenedMsg) (tea.Model, tea.Cmd) {
	if m.bridge != nil {
		m.bridge.stop()
	}
	m.sess = msg.Session
	m.domain = msg.Session.Domain()
	m.bridge = newBridge(msg.Session)
	m.opened = true
	m.buffer.Reset()
	m.applySnapshot(msg.Session.Snapshot())

	m.log.Debug().
		Str("domain", m.domain).
		Str("conversation_id", m.snap.ConversationID).
		Int("messages", len(m.snap.Messages)).
		Msg("chat opened")
	return m, m.bridge.wait()
}

func (m Model) handleSnapshot(msg SnapshotMsg) (tea.Model, tea.Cmd) {
	// A replaced session's bridge is already stopped; do not re-arm it.
	if msg.Session != m.sess {
		return m, nil
	}

	m.buffer.Write(msg.Snapshot)
	cmds := []tea.Cmd{m.bridge.wait()}

	if !msg.Snapshot.Loading {
		if snap, ok := m.buffer.ForceFlush(); ok {
			m.applySnapshot(snap)
		}
	} else if !m.ticking {
		m.ticking = true
		cmds = append(cmds, streamTickCmd(m.buffer.Interval()))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	m.ticking = false
	if snap, ok := m.buffer.Flush(); ok {
		m.applySnapshot(snap)
	}
	if m.snap.Loading || m.buffer.Pending() > 0 {
		m.ticking = true
		return m, streamTickCmd(m.buffer.Interval())
	}
	return m, nil
}

// applySnapshot replaces the transcript on screen.
func (m *Model) applySnapshot(snap session.Snapshot) {
	m.snap = snap
	if m.selected >= len(snap.Messages) || (m.selected >= 0 && !snap.Messages[m.selected].CanRate()) {
		m.selected = -1
	}
	m.updateViewport()
}

// updateViewport re-renders the transcript, following the bottom while the
// user has not scrolled away.
func (m *Model) updateViewport() {
	follow := m.viewport.AtBottom() || m.snap.Loading
	m.viewport.SetContent(m.renderMessages())
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m.quit()

	case key.Matches(msg, m.keyMap.Reset):
		return m.resetConversation()

	case key.Matches(msg, m.keyMap.ToggleFocus):
		if m.focus == FocusInput {
			m.focus = FocusTranscript
			m.input.Blur()
		} else {
			m.focus = FocusInput
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == FocusInput {
		return m.handleInputKey(msg)
	}
	return m.handleTranscriptKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keyMap.Submit) {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.handleCommand(text)
	}
	if m.sess == nil {
		m.statusMsg = styles.RenderInfo("Still connecting...")
		return m, clearStatusCmd(statusTTL)
	}
	if m.snap.Loading {
		m.statusMsg = styles.RenderWarning("Please wait for the current answer")
		return m, clearStatusCmd(statusTTL)
	}

	m.input.Reset()
	m.statusMsg = ""
	m.viewport.GotoBottom()
	cmds := []tea.Cmd{m.sendCmd(text)}
	if !m.ticking {
		m.ticking = true
		cmds = append(cmds, streamTickCmd(m.buffer.Interval()))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleTranscriptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Close):
		return m.quit()

	case key.Matches(msg, m.keyMap.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keyMap.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keyMap.Home):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keyMap.End):
		m.viewport.GotoBottom()

	case key.Matches(msg, m.keyMap.PrevAnswer):
		m.moveSelection(-1)
	case key.Matches(msg, m.keyMap.NextAnswer):
		m.moveSelection(1)

	case key.Matches(msg, m.keyMap.RateUp):
		return m.rate(true)
	case key.Matches(msg, m.keyMap.RateDown):
		return m.rate(false)

	case key.Matches(msg, m.keyMap.ToggleDocs):
		m.showDocs = !m.showDocs
		m.updateViewport()
	}
	return m, nil
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m *Model) moveSelection(delta int) {
	answers := m.rateable()
	if len(answers) == 0 {
		return
	}

	pos := -1
	for i, idx := range answers {
		if idx == m.selected {
			pos = i
			break
		}
	}
	if pos == -1 {
		if delta < 0 {
			pos = len(answers)
		}
	}
	pos = min(max(pos+delta, 0), len(answers)-1)
	m.selected = answers[pos]
	m.updateViewport()
}

// ratingTarget is the selected answer, or the latest rateable one.
func (m Model) ratingTarget() int {
	if m.selected >= 0 && m.selected < len(m.snap.Messages) && m.snap.Messages[m.selected].CanRate() {
		return m.selected
	}
	answers := m.rateable()
	if len(answers) == 0 {
		return -1
	}
	return answers[len(answers)-1]
}

func (m Model) rate(positive bool) (tea.Model, tea.Cmd) {
	idx := m.ratingTarget()
	if idx < 0 || m.sess == nil {
		m.statusMsg = styles.RenderInfo("No answer to rate yet")
		return m, clearStatusCmd(statusTTL)
	}
	m.selected = idx
	m.updateViewport()
	m.statusMsg = styles.RenderInfo("Sending feedback...")
	return m, m.feedbackCmd(m.snap.Messages[idx].ServerID(), positive)
}

func (m Model) resetConversation() (tea.Model, tea.Cmd) {
	if m.sess == nil {
		return m, nil
	}
	m.sess.Reset("")
	m.selected = -1
	m.buffer.Reset()
	m.statusMsg = styles.RenderInfo("Started a new conversation")
	return m, clearStatusCmd(statusTTL)
}

func (m Model) switchDomain(domain string) (tea.Model, tea.Cmd) {
	if m.bridge != nil {
		m.bridge.stop()
		m.bridge = nil
	}
	m.sess = nil
	m.domain = domain
	m.snap = session.Snapshot{Domain: domain}
	m.selected = -1
	m.buffer.Reset()
	m.cache = make(map[string]renderedMessage)
	m.updateViewport()
	return m, m.openCmd(domain)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.bridge != nil {
		m.bridge.stop()
	}
	if m.ctrl != nil {
		m.ctrl.Close()
	}
	return m, tea.Quit
}
