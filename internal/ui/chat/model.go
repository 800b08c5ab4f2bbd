// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat/internal/markdown"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/ui/styles"
	"github.com/jeranaias/docchat/internal/widget"
)

// =============================================================================
// FOCUS
// =============================================================================

// Focus selects which pane receives keys.
type Focus int

const (
	FocusInput      Focus = iota // typing a question
	FocusTranscript              // scrolling, rating and browsing sources
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a chat model.
type Options struct {
	Controller *widget.Controller
	Domain     string
	Theme      *styles.Theme
	Log        zerolog.Logger

	// Context bounds every session call; defaults to context.Background.
	Context context.Context

	WordWrap int  // maximum markdown wrap width
	MaxFPS   int  // re-render cap while streaming
	Styled   bool // glamour auto style instead of notty
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat modal.
type Model struct {
	ctx    context.Context
	ctrl   *widget.Controller
	domain string
	log    zerolog.Logger

	// Session wiring
	sess   *session.Session
	bridge *bridge
	snap   session.Snapshot
	opened bool

	// Rendering
	theme    *styles.Theme
	wrap     int
	styled   bool
	renderer *markdown.TerminalRenderer
	cache    map[string]renderedMessage

	// Streaming optimization
	buffer  *StreamingBuffer
	ticking bool

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// Dimensions
	width  int
	height int

	// View state
	focus     Focus
	selected  int // index of the selected answer, -1 for none
	showDocs  bool
	statusMsg string
	quitting  bool
}

type renderedMessage struct {
	source string
	width  int
	out    string
}

// New creates a chat model. The session is opened by Init.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	wrap := opts.WordWrap
	if wrap <= 0 {
		wrap = 80
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubble()
	sp.Style = theme.Spinner

	return Model{
		ctx:      ctx,
		ctrl:     opts.Controller,
		domain:   opts.Domain,
		log:      opts.Log,
		theme:    theme,
		wrap:     wrap,
		styled:   opts.Styled,
		renderer: markdown.NewTerminalRenderer(wrap, opts.Styled),
		cache:    make(map[string]renderedMessage),
		buffer:   NewStreamingBuffer(opts.MaxFPS),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		keyMap:   DefaultKeyMap(),
		focus:    FocusInput,
		selected: -1,
		showDocs: true,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init opens the session for the configured domain.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.openCmd(m.domain))
}

// View renders the modal.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderChat()
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

// openCmd opens (or switches) the widget session. Bootstrap runs inside
// Open, so the first snapshot already holds the resumed transcript.
func (m Model) openCmd(domain string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return OpenedMsg{Session: ctrl.Open(ctx, domain)}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		return SendDoneMsg{Accepted: sess.Send(ctx, text)}
	}
}

func (m Model) feedbackCmd(messageID int64, positive bool) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		sess.SubmitFeedback(ctx, messageID, positive)
		want := model.FeedbackFromBool(positive)
		recorded := false
		for _, msg := range sess.Messages() {
			if msg.MessageID != nil && *msg.MessageID == messageID {
				recorded = msg.Feedback == want
				break
			}
		}
		return FeedbackDoneMsg{MessageID: messageID, Positive: positive, Recorded: recorded}
	}
}

func clearStatusCmd(after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg { return StatusMsg("") })
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Session returns the open session, or nil before Init completes.
func (m Model) Session() *session.Session {
	return m.sess
}

// Snapshot returns the transcript currently on screen.
func (m Model) Snapshot() session.Snapshot {
	return m.snap
}

// Focus returns the pane receiving keys.
func (m Model) Focus() Focus {
	return m.focus
}

// Selected returns the index of the selected answer, or -1.
func (m Model) Selected() int {
	return m.selected
}

// Title returns the modal header for the current domain.
func (m Model) Title() string {
	if m.snap.Domain != "" {
		return widget.Title(m.snap.Domain)
	}
	return widget.Title(m.domain)
}

// rateable returns the indices of answers that accept feedback.
func (m Model) rateable() []int {
	var idx []int
	for i, msg := range m.snap.Messages {
		if msg.CanRate() && !msg.IsStreaming {
			idx = append(idx, i)
		}
	}
	return idx
}
