// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docchat/internal/ui/styles"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command.
type CommandHandler func(m Model, args []string) (tea.Model, tea.Cmd)

// commandHandlers maps command names to their handler functions.
var commandHandlers = map[string]CommandHandler{
	"help": handleHelpCommand,
	"h":    handleHelpCommand,
	"?":    handleHelpCommand,

	"quit":  handleQuitCommand,
	"q":     handleQuitCommand,
	"exit":  handleQuitCommand,
	"close": handleQuitCommand,

	"reset": handleResetCommand,
	"new":   handleResetCommand,
	"clear": handleResetCommand,

	"domain": handleDomainCommand,

	"docs":    handleDocsCommand,
	"sources": handleDocsCommand,
}

// handleCommand runs a slash command typed into the input.
func (m Model) handleCommand(content string) (tea.Model, tea.Cmd) {
	m.input.Reset()

	parts := strings.Fields(content)
	if len(parts) == 0 {
		return m, nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))

	handler, ok := commandHandlers[name]
	if !ok {
		m.statusMsg = styles.RenderError("Unknown command /" + name + " (try /help)")
		return m, clearStatusCmd(statusTTL)
	}
	return handler(m, parts[1:])
}

func handleHelpCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	m.statusMsg = styles.RenderInfo("/reset  /domain NAME  /docs  /quit")
	return m, clearStatusCmd(2 * statusTTL)
}

func handleQuitCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m.quit()
}

func handleResetCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m.resetConversation()
}

func handleDomainCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.statusMsg = styles.RenderInfo("Domain: " + m.domain)
		return m, clearStatusCmd(statusTTL)
	}
	domain := strings.ToLower(args[0])
	if domain == m.domain && m.sess != nil {
		return m, nil
	}
	if m.snap.Loading {
		m.statusMsg = styles.RenderWarning("Switching domain cancels the current answer")
	}
	return m.switchDomain(domain)
}

func handleDocsCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	m.showDocs = !m.showDocs
	m.updateViewport()
	return m, nil
}
