// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/api"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/storage"
	"github.com/jeranaias/docchat/internal/ui/styles"
	"github.com/jeranaias/docchat/internal/widget"
)

const answerDocs = `[{"content":"Invoices are issued monthly.","metadata":{"title":"Billing Guide"},"score":0.87}]`

// portal scripts the conversation service.
type portal struct {
	mu        sync.Mutex
	feedbacks []api.FeedbackRequest
}

func (p *portal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c9"}`))
	})
	mux.HandleFunc("/api/v1/conversations/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c1","messages":[
			{"id":1,"role":"user","content":"old question"},
			{"id":2,"role":"assistant","content":"old answer","feedback":true}]}`))
	})
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(api.MessageIDHeader, "42")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Hello ", "**world**", "---SUPPORTING_DOCS_START---", answerDocs, "---SUPPORTING_DOCS_END---"} {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
		}
	})
	mux.HandleFunc("/api/v1/feedback", func(w http.ResponseWriter, r *http.Request) {
		var req api.FeedbackRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.mu.Lock()
		p.feedbacks = append(p.feedbacks, req)
		p.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	return mux
}

func (p *portal) feedbackCalls() []api.FeedbackRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.FeedbackRequest(nil), p.feedbacks...)
}

type fixture struct {
	portal *portal
	ctrl   *widget.Controller
	ids    *storage.ConversationIDs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := &portal{}
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)

	ids := storage.NewConversationIDs(storage.NewMemory(), "APP")
	ctrl := widget.NewController(session.Deps{
		Client: api.NewClient(&api.ClientConfig{BaseURL: srv.URL, PathPrefix: "/api/v1", Timeout: time.Second}),
		IDs:    ids,
		Log:    zerolog.Nop(),
	})
	t.Cleanup(ctrl.Close)
	return &fixture{portal: p, ctrl: ctrl, ids: ids}
}

func (f *fixture) model(domain string) Model {
	return New(Options{
		Controller: f.ctrl,
		Domain:     domain,
		Theme:      styles.NewTheme("dark"),
		Log:        zerolog.Nop(),
		WordWrap:   80,
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// open sizes the model and delivers the OpenedMsg produced by Init.
func open(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, m.openCmd(m.domain)())
	require.NotNil(t, m.Session())
	return m
}

// drain delivers the newest pending session snapshot.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	msg := m.bridge.wait()()
	require.IsType(t, SnapshotMsg{}, msg)
	m, _ = update(t, m, msg)
	return m
}

func ask(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, m.sendCmd(text)())
	return drain(t, m)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// TESTS
// =============================================================================

func TestOpenResumesPersistedTranscript(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ids.Set(context.Background(), "billing", "c1"))

	m := open(t, f.model("billing"))

	assert.Equal(t, "Billing Assistant", m.Title())
	assert.Len(t, m.Snapshot().Messages, 2)
	view := m.View()
	assert.Contains(t, view, "Billing Assistant")
	assert.Contains(t, view, "conversation c1")
	assert.Contains(t, view, "old answer")
}

func TestEmptyTranscriptView(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))

	assert.Equal(t, "AI Assistant", m.Title())
	view := m.View()
	assert.Contains(t, view, "new conversation")
	assert.Contains(t, view, "Ask a question about the documentation.")
}

func TestEnterSendsAndClearsInput(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))

	m.input.SetValue("How do invoices work?")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())
	assert.True(t, m.ticking)
}

func TestBlankInputIsIgnored(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))

	m.input.SetValue("   ")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestStreamedAnswerWithSources(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))

	m = ask(t, m, "How do invoices work?")

	snap := m.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.False(t, snap.Loading)
	assert.Equal(t, "c9", snap.ConversationID)
	answer := snap.Messages[1]
	assert.Equal(t, int64(42), answer.ServerID())
	assert.Equal(t, "Hello **world**", answer.Markdown)

	view := m.renderMessages()
	assert.Contains(t, view, "How do invoices work?")
	assert.Contains(t, view, "world")
	assert.Contains(t, view, "Sources")
	assert.Contains(t, view, "Billing Guide")
	assert.Contains(t, view, "Relevance: 0.87")
	assert.Contains(t, view, "helpful")
	assert.NotContains(t, view, "SUPPORTING_DOCS")
}

func TestToggleDocs(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))
	m = ask(t, m, "question")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, FocusTranscript, m.Focus())
	m, _ = update(t, m, keyRunes("d"))

	view := m.renderMessages()
	assert.NotContains(t, view, "Billing Guide")
	assert.Contains(t, view, "1 source hidden")
}

func TestRateLatestAnswer(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))
	m = ask(t, m, "question")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, cmd := update(t, m, keyRunes("+"))
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.Selected())

	done := cmd()
	require.Equal(t, FeedbackDoneMsg{MessageID: 42, Positive: true, Recorded: true}, done)
	m, _ = update(t, m, done)
	m = drain(t, m)

	assert.Equal(t, model.FeedbackPositive, m.Snapshot().Messages[1].Feedback)
	assert.Equal(t, []api.FeedbackRequest{{MessageID: 42, Feedback: true}}, f.portal.feedbackCalls())
}

func TestRateWithoutAnswer(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, keyRunes("-"))

	assert.Contains(t, m.statusMsg, "No answer to rate yet")
	assert.Empty(t, f.portal.feedbackCalls())
}

func TestMoveSelectionSkipsUnratable(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))

	msgs := []*model.Message{
		model.NewUserMessage("q1"),
		model.NewPlaceholder(model.Int64(1)),
		model.NewUserMessage("q2"),
		model.NewErrorMessage("Error processing your request"),
		model.NewUserMessage("q3"),
		model.NewPlaceholder(model.Int64(3)),
	}
	for _, msg := range msgs {
		msg.IsStreaming = false
	}
	m.applySnapshot(session.Snapshot{Domain: "general", Messages: msgs})

	m.moveSelection(-1)
	assert.Equal(t, 5, m.Selected())
	m.moveSelection(-1)
	assert.Equal(t, 1, m.Selected())
	m.moveSelection(-1)
	assert.Equal(t, 1, m.Selected())
	m.moveSelection(1)
	assert.Equal(t, 5, m.Selected())

	m.applySnapshot(session.Snapshot{Domain: "general"})
	assert.Equal(t, -1, m.Selected())
}

func TestResetClearsTranscript(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))
	m = ask(t, m, "question")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m = drain(t, m)

	assert.Empty(t, m.Snapshot().Messages)
	assert.Empty(t, m.Snapshot().ConversationID)
	_, ok, err := f.ids.Get(context.Background(), "general")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDomainCommandSwitchesSession(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))
	first := m.Session()

	m.input.SetValue("/domain Billing")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Nil(t, m.Session())

	m, _ = update(t, m, cmd())
	assert.Equal(t, "billing", m.Session().Domain())
	assert.Equal(t, "Billing Assistant", m.Title())
	assert.True(t, first.Closed())

	// Late snapshots from the replaced session are dropped.
	stale := session.Snapshot{Domain: "general", Messages: []*model.Message{model.NewUserMessage("late")}}
	m, cmd = update(t, m, SnapshotMsg{Session: first, Snapshot: stale})
	assert.Nil(t, cmd)
	assert.Empty(t, m.Snapshot().Messages)
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))

	m.input.SetValue("/bogus")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.statusMsg, "Unknown command /bogus")
}

func TestQuitClosesWidget(t *testing.T) {
	f := newFixture(t)
	m := open(t, f.model(""))
	sess := m.Session()

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, f.ctrl.IsOpen())
	assert.True(t, sess.Closed())
	assert.Empty(t, m.View())
}

func TestFormatDoc(t *testing.T) {
	theme := styles.NewTheme("dark")

	long := strings.Repeat("word ", 60)
	out := FormatDoc(theme, model.SupportingDocument{Content: long})
	assert.Contains(t, out, "Untitled")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, "Relevance")

	out = FormatDoc(theme, model.SupportingDocument{
		Content:  "short",
		Metadata: model.DocumentMetadata{"title": "Guide"},
		Score:    model.Float64(0.5),
	})
	assert.Contains(t, out, "Guide")
	assert.Contains(t, out, "short")
	assert.NotContains(t, out, "...")
	assert.Contains(t, out, "Relevance: 0.50")
}
