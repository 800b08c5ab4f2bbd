// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/widget"
)

var replRaw bool

const replHelp = `Start a line-mode chat. Answers stream in as they are generated and the
input line supports history (up/down) and editing.

Commands:
  /help              Show commands
  /reset             Start a new conversation
  /domain <name>     Switch to another domain
  /up [message-id]   Rate an answer helpful (default: the latest)
  /down [message-id] Rate an answer not helpful
  /docs              Show or hide sources
  /history           Print the conversation so far
  /quit              Leave`

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat line by line in the terminal",
	Long:  replHelp,
	Args:  cobra.NoArgs,
	RunE:  runREPL,
}

func init() {
	replCmd.Flags().BoolVar(&replRaw, "raw", false, "print markdown source when replaying history")
	rootCmd.AddCommand(replCmd)
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of input per prompt. io.EOF ends the loop.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// historyReader provides input history and line editing on a terminal.
type historyReader struct {
	line        *liner.State
	historyFile string
}

func newHistoryReader(historyFile string) *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &historyReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *historyReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (r *historyReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// plainReader reads lines from a non-terminal input such as a pipe.
type plainReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *plainReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		fmt.Fprintln(r.out)
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *plainReader) Close() error { return nil }

func newLineReader(cmd *cobra.Command) lineReader {
	if stdinIsTerminal(cmd) {
		dir, err := config.Dir()
		if err != nil {
			dir = os.TempDir()
		}
		return newHistoryReader(filepath.Join(dir, "repl_history"))
	}
	return &plainReader{scanner: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

// =============================================================================
// LOOP
// =============================================================================

type repl struct {
	cmd     *cobra.Command
	ctrl    *widget.Controller
	sess    *session.Session
	in      lineReader
	printer *transcriptPrinter
}

func runREPL(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.promptLocation(cmd)

	r := &repl{
		cmd:     cmd,
		ctrl:    a.ctrl,
		in:      newLineReader(cmd),
		printer: newTranscriptPrinter(cmd.OutOrStdout(), a.cfg.UI.WordWrap, replRaw),
	}
	defer r.in.Close()

	r.open(cmd.Context(), a.domain())
	return r.run(cmd.Context())
}

func (r *repl) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.in.Prompt(r.sess.Domain() + "> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := r.command(ctx, line); quit {
				return nil
			}
		default:
			r.ask(ctx, line)
		}
	}
}

// open binds the loop to domain and replays a resumed conversation.
func (r *repl) open(ctx context.Context, domain string) {
	r.sess = r.ctrl.Open(ctx, domain)
	r.cmd.Println(labelStyle.Render(widget.Title(r.sess.Domain())) + dimStyle.Render("  /help for commands"))

	msgs := r.sess.Messages()
	if len(msgs) == 0 {
		r.cmd.Println()
		return
	}
	r.cmd.Println(dimStyle.Render(fmt.Sprintf("Resumed conversation %s (%d messages)", r.sess.ConversationID(), len(msgs))))
	r.cmd.Println()
	for _, msg := range msgs {
		r.printer.message(msg)
	}
}

// ask sends text and streams the answer prose, then prints its sources.
func (r *repl) ask(ctx context.Context, text string) {
	skip := len(r.sess.Messages())
	out := r.cmd.OutOrStdout()

	printer := newAnswerPrinter(out, skip)
	unsubscribe := r.sess.Subscribe(printer.observe)
	fmt.Fprintln(out, labelStyle.Render(model.RoleAssistant.DisplayName()))
	accepted := r.sess.Send(ctx, text)
	unsubscribe()

	if !accepted {
		r.cmd.Println(errorStyle.Render("Message not sent"))
		return
	}
	if printer.wrote() {
		fmt.Fprintln(out)
	}

	answer := latestAnswer(r.sess.Messages(), skip)
	if answer == nil {
		return
	}
	if answer.IsError || !printer.wrote() {
		r.printer.body(answer)
	}
	r.printer.footer(answer)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and reports whether the loop should end.
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h", "/?":
		r.cmd.Println(replHelp)

	case "/reset", "/new", "/clear":
		r.sess.Reset("")
		r.cmd.Println(successStyle.Render("Started a new conversation"))

	case "/domain":
		if len(args) != 1 {
			r.cmd.Println(errorStyle.Render("Usage: /domain <name>"))
			return false
		}
		r.open(ctx, args[0])

	case "/up", "/down":
		r.rate(ctx, name == "/up", args)

	case "/docs", "/sources":
		r.printer.showDocs = !r.printer.showDocs
		state := "hidden"
		if r.printer.showDocs {
			state = "shown"
		}
		r.cmd.Println(dimStyle.Render("Sources " + state))

	case "/history":
		for _, msg := range r.sess.Messages() {
			r.printer.message(msg)
		}

	default:
		r.cmd.Println(errorStyle.Render(fmt.Sprintf("Unknown command %s (try /help)", name)))
	}
	return false
}

func (r *repl) rate(ctx context.Context, positive bool, args []string) {
	var id int64 = -1
	if len(args) > 0 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			r.cmd.Println(errorStyle.Render("Message id must be a number"))
			return
		}
		id = parsed
	} else {
		msgs := r.sess.Messages()
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].CanRate() {
				id = msgs[i].ServerID()
				break
			}
		}
	}
	if id < 0 {
		r.cmd.Println(dimStyle.Render("No answer to rate yet"))
		return
	}

	r.sess.SubmitFeedback(ctx, id, positive)

	want := model.FeedbackFromBool(positive)
	for _, msg := range r.sess.Messages() {
		if msg.MessageID != nil && *msg.MessageID == id && msg.Feedback == want {
			r.cmd.Println(successStyle.Render("Thanks for your feedback"))
			return
		}
	}
	r.cmd.Println(errorStyle.Render("Feedback could not be recorded"))
}
