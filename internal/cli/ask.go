// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askRaw    bool
	askStream bool
	askNoDocs bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Ask the assistant one question and print the answer.

The question joins the domain's current conversation, so follow-up questions
asked later (with ask, repl or chat) keep the context. The answer is rendered
as terminal markdown followed by its sources.

Examples:
  docchat ask "How do I rotate an API key?"
  docchat ask --domain billing --stream When are invoices issued
  docchat ask --json "What is the refund policy?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "print markdown source instead of rendering it")
	askCmd.Flags().BoolVarP(&askStream, "stream", "s", false, "print the answer as it arrives (implies --raw)")
	askCmd.Flags().BoolVar(&askNoDocs, "no-docs", false, "omit supporting documents")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question is empty")
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sess := a.ctrl.Open(ctx, a.domain())
	skip := len(sess.Messages())

	var printer *answerPrinter
	if askStream && !jsonOutput {
		printer = newAnswerPrinter(out, skip)
		unsubscribe := sess.Subscribe(printer.observe)
		defer unsubscribe()
	}

	if !sess.Send(ctx, question) {
		return errors.New("question was not sent")
	}

	answer := latestAnswer(sess.Messages(), skip)
	var answerErr error
	switch {
	case ctx.Err() != nil:
		answerErr = ctx.Err()
	case answer == nil:
		answerErr = errors.New("no answer received")
	case answer.IsError:
		answerErr = errors.New(answer.Content)
	}

	if jsonOutput {
		data := newAnswerJSON(sess.Domain(), sess.ConversationID(), answer)
		if answer != nil && answer.IsError {
			data = newAnswerJSON(sess.Domain(), sess.ConversationID(), nil)
		}
		return writeJSON(cmd, "ask", data, answerErr)
	}
	if answerErr != nil {
		return fmt.Errorf("ask failed: %w", answerErr)
	}

	p := newTranscriptPrinter(out, a.cfg.UI.WordWrap, askRaw || askStream)
	p.showDocs = !askNoDocs
	if printer != nil && printer.wrote() {
		fmt.Fprintln(out)
	} else {
		p.body(answer)
	}
	p.footer(answer)
	return nil
}
