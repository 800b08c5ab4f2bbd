// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/logging"
	"github.com/jeranaias/docchat/internal/ui/chat"
	"github.com/jeranaias/docchat/internal/ui/styles"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the full-screen chat",
	Long: `Open the chat modal for a domain. The domain's conversation is resumed
if one was persisted.

Controls:
  Enter        Send the question
  Tab / Esc    Switch between the input and the transcript
  [ / ]        Select the previous or next answer
  + / -        Rate the selected (or latest) answer
  d            Show or hide sources
  Ctrl+R       Start a new conversation
  /help        List slash commands
  Ctrl+C       Quit

Logs go to ~/.docchat/docchat.log (or logging.file) while the chat is open.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := RequiresTTY("open the chat"); err != nil {
		return fmt.Errorf("%w; use `docchat ask` or `docchat repl` instead", err)
	}

	a, err := newApp(cmd, appOptions{logFile: true})
	if err != nil {
		return err
	}
	defer a.Close()

	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("chat crashed")
			fmt.Fprintf(os.Stderr, "Panic in chat: %v\n", r)
		}
	}()

	a.promptLocation(cmd)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	a.watchConfig(ctx)

	m := chat.New(chat.Options{
		Controller: a.ctrl,
		Domain:     a.domain(),
		Theme:      styles.NewTheme(a.cfg.UI.Theme),
		Log:        logging.Component(a.log, "tui"),
		Context:    ctx,
		WordWrap:   a.cfg.UI.WordWrap,
		MaxFPS:     a.cfg.UI.MaxFPS,
		Styled:     ColorsEnabled(),
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	a.ctrl.Close()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchConfig applies log level edits to the config file while the chat is
// open. A --log-level flag pins the level.
func (a *app) watchConfig(ctx context.Context) {
	if a.cfgPath == "" {
		return
	}
	if _, err := os.Stat(a.cfgPath); err != nil {
		return
	}

	err := config.Watch(ctx, a.cfgPath, func(cfg *config.Config, err error) {
		if err != nil {
			a.log.Warn().Err(err).Msg("config reload failed")
			return
		}
		config.SetGlobal(cfg)
		if logLevel == "" {
			logging.SetLevel(cfg.Logging.Level)
		}
		a.log.Info().Str("level", cfg.Logging.Level).Msg("config reloaded")
	})
	if err != nil {
		a.log.Warn().Err(err).Str("path", a.cfgPath).Msg("config watch unavailable")
	}
}
