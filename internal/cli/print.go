// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/docchat/internal/markdown"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/ui/chat"
	"github.com/jeranaias/docchat/internal/ui/styles"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan)
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(styles.Purple)
	dimStyle     = lipgloss.NewStyle().Foreground(styles.TextMuted)
	docTitle     = lipgloss.NewStyle().Bold(true).Foreground(styles.DocTitleFg)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.Rose)
	successStyle = lipgloss.NewStyle().Foreground(styles.Emerald)
)

// =============================================================================
// STREAMED ANSWERS
// =============================================================================

// answerPrinter writes the prose of a streaming answer as it arrives. It is a
// session observer and only looks at messages appended after skip.
type answerPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	skip    int
	msgID   string
	printed int
}

func newAnswerPrinter(w io.Writer, skip int) *answerPrinter {
	return &answerPrinter{w: w, skip: skip}
}

func (p *answerPrinter) observe(snap session.Snapshot) {
	if len(snap.Messages) <= p.skip {
		return
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != model.RoleAssistant || last.IsError {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if last.ID != p.msgID {
		p.msgID = last.ID
		p.printed = 0
	}
	md := last.Markdown
	if len(md) <= p.printed {
		return
	}
	fmt.Fprint(p.w, md[p.printed:])
	p.printed = len(md)
}

// wrote reports whether any prose was printed.
func (p *answerPrinter) wrote() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed > 0
}

// latestAnswer returns the last assistant message appended after skip.
func latestAnswer(msgs []*model.Message, skip int) *model.Message {
	for i := len(msgs) - 1; i >= skip && i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return msgs[i]
		}
	}
	return nil
}

// =============================================================================
// TRANSCRIPT OUTPUT
// =============================================================================

// transcriptPrinter renders messages for line-oriented output.
type transcriptPrinter struct {
	w        io.Writer
	renderer *markdown.TerminalRenderer
	raw      bool
	showDocs bool
}

func newTranscriptPrinter(w io.Writer, wrap int, raw bool) *transcriptPrinter {
	if wrap <= 0 || wrap > GetTerminalWidth() {
		wrap = GetTerminalWidth()
	}
	styled := ColorsEnabled() && isTerminalWriter(w)
	return &transcriptPrinter{
		w:        w,
		renderer: markdown.NewTerminalRenderer(wrap, styled),
		raw:      raw,
		showDocs: true,
	}
}

// header prints the role line, e.g. "Assistant · 3 minutes ago".
func (p *transcriptPrinter) header(msg *model.Message) {
	label := labelStyle.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleUser {
		label = userStyle.Render(msg.Role.DisplayName())
	}
	if !msg.CreatedAt.IsZero() {
		label += dimStyle.Render(" · " + humanize.Time(msg.CreatedAt))
	}
	fmt.Fprintln(p.w, label)
}

// message prints a whole message: header, body, sources and rating.
func (p *transcriptPrinter) message(msg *model.Message) {
	p.header(msg)
	p.body(msg)
	p.footer(msg)
}

// body prints the message text. Assistant answers go through glamour unless
// raw output was requested.
func (p *transcriptPrinter) body(msg *model.Message) {
	switch {
	case msg.IsError:
		fmt.Fprintln(p.w, errorStyle.Render(styles.StatusIndicators.Error+" "+msg.Content))
	case msg.Role == model.RoleUser || p.raw:
		fmt.Fprintln(p.w, strings.TrimRight(msg.DisplayText(), "\n"))
	default:
		fmt.Fprintln(p.w, strings.TrimRight(p.renderer.Render(msg.DisplayText()), "\n"))
	}
}

// footer prints sources and the rating line of an answer.
func (p *transcriptPrinter) footer(msg *model.Message) {
	if msg.Role != model.RoleAssistant || msg.IsError {
		fmt.Fprintln(p.w)
		return
	}
	if p.showDocs {
		p.docs(msg.SupportingDocs)
	} else if n := len(msg.SupportingDocs); n > 0 {
		fmt.Fprintln(p.w, dimStyle.Render(fmt.Sprintf("(%d %s hidden)", n, plural(n, "source", "sources"))))
	}
	if msg.CanRate() {
		fmt.Fprintln(p.w, dimStyle.Render(ratingLine(msg)))
	}
	fmt.Fprintln(p.w)
}

func (p *transcriptPrinter) docs(docs []model.SupportingDocument) {
	if len(docs) == 0 {
		return
	}
	fmt.Fprintln(p.w, labelStyle.Render("Sources"))
	for i, doc := range docs {
		fmt.Fprintln(p.w, formatDoc(i+1, doc))
	}
}

// formatDoc renders one numbered source: title, excerpt and relevance.
func formatDoc(n int, doc model.SupportingDocument) string {
	line := fmt.Sprintf("  [%d] %s", n, docTitle.Render(doc.DisplayTitle()))
	if doc.HasScore() {
		line += dimStyle.Render(" (relevance " + doc.ScoreLabel() + ")")
	}
	if excerpt := util.Excerpt(doc.Content, chat.ExcerptWidth); excerpt != "" {
		line += "\n      " + excerpt
	}
	return line
}

func ratingLine(msg *model.Message) string {
	id := msg.ServerID()
	switch msg.Feedback {
	case model.FeedbackPositive:
		return fmt.Sprintf("message %d %s rated helpful", id, styles.StatusIndicators.Up)
	case model.FeedbackNegative:
		return fmt.Sprintf("message %d %s rated not helpful", id, styles.StatusIndicators.Down)
	default:
		return fmt.Sprintf("message %d: rate with `docchat feedback %d up|down`", id, id)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// =============================================================================
// JSON SHAPES
// =============================================================================

// answerJSON is the --json form of one answer.
type answerJSON struct {
	Domain         string                     `json:"domain"`
	ConversationID string                     `json:"conversation_id"`
	MessageID      *int64                     `json:"message_id"`
	Markdown       string                     `json:"markdown"`
	HTML           string                     `json:"html"`
	SupportingDocs []model.SupportingDocument `json:"supporting_docs"`
}

func newAnswerJSON(domain, conversationID string, msg *model.Message) answerJSON {
	out := answerJSON{
		Domain:         domain,
		ConversationID: conversationID,
		SupportingDocs: []model.SupportingDocument{},
	}
	if msg == nil {
		return out
	}
	out.MessageID = msg.MessageID
	out.Markdown = msg.Markdown
	out.HTML = msg.Content
	if msg.SupportingDocs != nil {
		out.SupportingDocs = msg.SupportingDocs
	}
	return out
}
