// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/api"
	"github.com/jeranaias/docchat/internal/geo"
	"github.com/jeranaias/docchat/internal/markdown"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/storage"
	"github.com/jeranaias/docchat/internal/stream"
	"github.com/jeranaias/docchat/internal/telemetry"
)

// =============================================================================
// FAKE CONVERSATION SERVICE
// =============================================================================

type fakeStore struct {
	mu sync.Mutex

	nextConv     int
	createStatus int
	getStatus    int
	getHijack    bool
	conversation string

	searchStatus int
	messageID    string
	chunks       []string
	// started is closed when the first search arrives; release gates the body.
	started chan struct{}
	release chan struct{}
	lastReq map[string]interface{}

	feedbackStatus int
	feedback       []api.FeedbackRequest

	creates  int32
	searches int32
	gets     int32
}

func (f *fakeStore) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.creates, 1)
		f.mu.Lock()
		status := f.createStatus
		f.nextConv++
		id := fmt.Sprintf("c%d", f.nextConv)
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		_, _ = fmt.Fprintf(w, `{"id":%q}`, id)
	})

	mux.HandleFunc("/api/v1/conversations/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.gets, 1)
		if f.getHijack {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		if f.getStatus != 0 {
			w.WriteHeader(f.getStatus)
			return
		}
		_, _ = w.Write([]byte(f.conversation))
	})

	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&f.searches, 1) == 1 && f.started != nil {
			close(f.started)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastReq = body
		f.mu.Unlock()

		if f.messageID != "" {
			w.Header().Set(api.MessageIDHeader, f.messageID)
		}
		if f.searchStatus != 0 {
			w.WriteHeader(f.searchStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		for i, chunk := range f.chunks {
			if i == 1 && f.release != nil {
				select {
				case <-f.release:
				case <-r.Context().Done():
					return
				}
			}
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
		}
		if len(f.chunks) <= 1 && f.release != nil {
			select {
			case <-f.release:
			case <-r.Context().Done():
			}
		}
	})

	mux.HandleFunc("/api/v1/feedback", func(w http.ResponseWriter, r *http.Request) {
		var req api.FeedbackRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.feedback = append(f.feedback, req)
		status := f.feedbackStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
		}
	})

	return mux
}

func (f *fakeStore) last() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func (f *fakeStore) feedbackCalls() []api.FeedbackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.FeedbackRequest(nil), f.feedback...)
}

type harness struct {
	store    *fakeStore
	kv       storage.KV
	ids      *storage.ConversationIDs
	renderer *markdown.HTMLRenderer
	deps     Deps
}

func newHarness(t *testing.T, store *fakeStore) *harness {
	t.Helper()
	srv := httptest.NewServer(store.handler(t))
	t.Cleanup(srv.Close)
	if store.release != nil {
		t.Cleanup(func() {
			select {
			case <-store.release:
			default:
				close(store.release)
			}
		})
	}

	kv := storage.NewMemory()
	ids := storage.NewConversationIDs(kv, "APP")
	renderer := markdown.NewHTMLRenderer(markdown.DefaultHTMLOptions())
	client := api.NewClient(&api.ClientConfig{BaseURL: srv.URL, PathPrefix: "/api/v1", Timeout: 2 * time.Second})

	return &harness{
		store:    store,
		kv:       kv,
		ids:      ids,
		renderer: renderer,
		deps: Deps{
			Client:   client,
			IDs:      ids,
			Renderer: renderer,
			Log:      zerolog.Nop(),
		},
	}
}

func (h *harness) session(domain string) *Session {
	return New(h.deps, domain)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSendPlainAnswer(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"Hi ", "there"}, messageID: "42"})
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "hello"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)

	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, h.renderer.Render("Hi there"), msgs[1].Content)
	assert.Equal(t, "Hi there", msgs[1].Markdown)
	require.NotNil(t, msgs[1].MessageID)
	assert.Equal(t, int64(42), *msgs[1].MessageID)
	assert.Empty(t, msgs[1].SupportingDocs)
	assert.False(t, msgs[1].IsStreaming)

	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Loading())
}

func TestSendAttachesMessageIDBeforeBody(t *testing.T) {
	store := &fakeStore{
		chunks:    []string{"Hi ", "there"},
		messageID: "42",
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	h := newHarness(t, store)
	s := h.session("general")

	done := make(chan bool)
	go func() { done <- s.Send(context.Background(), "hello") }()

	// The body is held after its first chunk; the id comes from the headers.
	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[1].MessageID != nil
	}, 2*time.Second, 5*time.Millisecond)

	msgs := s.Messages()
	assert.Equal(t, int64(42), *msgs[1].MessageID)
	assert.True(t, msgs[1].IsStreaming)
	assert.NotContains(t, msgs[1].Markdown, "there")
	assert.True(t, s.Loading())

	close(store.release)
	require.True(t, <-done)
	assert.Equal(t, "Hi there", s.Messages()[1].Markdown)
}

func TestSendWithSupportingDocs(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{
		"Answer text",
		"---SUPPORTING_DOCS_START---",
		`[{"content":"doc1","metadata":{"title":"T"},"score":0.9}]`,
		"---SUPPORTING_DOCS_END---",
	}})
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "What is X?"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	last := msgs[1]
	assert.Equal(t, h.renderer.Render("Answer text"), last.Content)
	require.Len(t, last.SupportingDocs, 1)
	assert.Equal(t, "T", last.SupportingDocs[0].Metadata.Title())
	require.NotNil(t, last.SupportingDocs[0].Score)
	assert.Equal(t, 0.9, *last.SupportingDocs[0].Score)
}

func TestSendSentinelsSplitAcrossChunks(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{
		"Answer ", "text---SUPPORT", "ING_DOCS_START---[{\"content\":\"d\",",
		"\"metadata\":{\"title\":\"Split\"}}]---SUPPORTING_", "DOCS_END---trailing ignored",
	}})
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "q"))

	last := s.Messages()[1]
	assert.Equal(t, h.renderer.Render("Answer text"), last.Content)
	require.Len(t, last.SupportingDocs, 1)
	assert.Equal(t, "Split", last.SupportingDocs[0].DisplayTitle())
}

func TestSendMalformedDocs(t *testing.T) {
	store := &fakeStore{chunks: []string{
		"Body",
		"---SUPPORTING_DOCS_START---",
		`[{"content": broken`,
		"---SUPPORTING_DOCS_END---",
	}}
	h := newHarness(t, store)
	m := telemetry.New(prometheus.NewRegistry())
	h.deps.Metrics = m
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "q"))

	msgs := s.Messages()
	require.Len(t, msgs, 2, "malformed docs must not produce an error message")
	assert.Equal(t, h.renderer.Render("Body"), msgs[1].Content)
	assert.Empty(t, msgs[1].SupportingDocs)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsParseFailures))
}

func TestSendContentMatchesFullRender(t *testing.T) {
	text := "# Title\n\nSome **bold** text.\n\n```go\nfmt.Println(\"hi\")\n```\n\n- a\n- b\n"
	splits := [][]string{
		{text},
		{text[:5], text[5:20], text[20:]},
		{text[:31], "   ", text[31:]},
	}
	for i, chunks := range splits {
		t.Run(fmt.Sprintf("split%d", i), func(t *testing.T) {
			h := newHarness(t, &fakeStore{chunks: chunks})
			s := h.session("general")

			require.True(t, s.Send(context.Background(), "q"))
			full := strings.Join(chunks, "")
			assert.Equal(t, h.renderer.Render(full), s.Messages()[1].Content)
		})
	}
}

func TestSendChunkModeMatchesLegacyBehaviour(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{
		"Prose",
		"---SUPPORTING_DOCS_START---",
		`[{"content":"x","metadata":{}}]`,
		"---SUPPORTING_DOCS_END---",
	}})
	h.deps.Mode = stream.ModeChunk
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "q"))
	last := s.Messages()[1]
	assert.Equal(t, h.renderer.Render("Prose"), last.Content)
	assert.Len(t, last.SupportingDocs, 1)
}

func TestSendRejectsBlank(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"x"}})
	s := h.session("general")

	assert.False(t, s.Send(context.Background(), "   \n\t"))
	assert.Empty(t, s.Messages())
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.store.creates))
}

func TestSendCreatesConversationOnce(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"ok"}})
	s := h.session("billing")

	require.True(t, s.Send(context.Background(), "one"))
	require.True(t, s.Send(context.Background(), "two"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&h.store.creates))
	assert.Equal(t, "c1", s.ConversationID())
	assert.Len(t, s.Messages(), 4)

	id, ok, err := h.ids.Get(context.Background(), "billing")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	raw, err := h.kv.Get(context.Background(), "APP_conversation_billing")
	require.NoError(t, err)
	assert.Equal(t, "c1", raw)

	assert.Equal(t, "c1", h.store.last()["conversation_id"])
	assert.Equal(t, "billing", h.store.last()["domain"])
	assert.Equal(t, "two", h.store.last()["query"])
}

func TestSendIncludesKnownLocation(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"ok"}})
	loc := geo.At(40.4, -3.7)
	loc.Country = "Spain"
	h.deps.Location = staticLocation(loc)
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "q"))
	assert.Equal(t, 40.4, h.store.last()["latitude"])
	assert.Equal(t, -3.7, h.store.last()["longitude"])
	assert.Equal(t, "Spain", h.store.last()["country"])
}

func TestSendOmitsUnknownLocation(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"ok"}})
	h.deps.Location = staticLocation(geo.Location{})
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "q"))
	assert.NotContains(t, h.store.last(), "latitude")
	assert.NotContains(t, h.store.last(), "longitude")
	assert.NotContains(t, h.store.last(), "country")
}

type staticLocation geo.Location

func (l staticLocation) Location(context.Context) geo.Location { return geo.Location(l) }

// =============================================================================
// ERROR PATH
// =============================================================================

func TestSendCreateConversationFails(t *testing.T) {
	h := newHarness(t, &fakeStore{createStatus: http.StatusInternalServerError})
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "hello"))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Equal(t, DefaultErrorText, msgs[0].Content)
	assert.Nil(t, msgs[0].MessageID)
	assert.True(t, msgs[0].IsError)
	assert.Equal(t, "", s.ConversationID())
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.store.searches))

	_, ok, err := h.ids.Get(context.Background(), "general")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendSearchFails(t *testing.T) {
	h := newHarness(t, &fakeStore{searchStatus: http.StatusBadGateway})
	h.deps.ErrorText = "Something broke"
	s := h.session("general")

	require.True(t, s.Send(context.Background(), "hello"))

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "", msgs[1].Content, "placeholder is left as-is")
	assert.False(t, msgs[1].IsStreaming)
	assert.Equal(t, "Something broke", msgs[2].Content)
	assert.Nil(t, msgs[2].MessageID)
	assert.False(t, s.Loading())
}

// =============================================================================
// RE-ENTRANCY AND CANCELLATION
// =============================================================================

func TestSendIsNotReentrant(t *testing.T) {
	store := &fakeStore{
		chunks:  []string{"first ", "second"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarness(t, store)
	s := h.session("general")

	done := make(chan bool)
	go func() { done <- s.Send(context.Background(), "one") }()

	<-store.started
	require.Eventually(t, func() bool { return s.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Loading())

	assert.False(t, s.Send(context.Background(), "two"))

	close(store.release)
	assert.True(t, <-done)

	assert.Equal(t, int32(1), atomic.LoadInt32(&store.searches))
	assert.Len(t, s.Messages(), 2)
	assert.False(t, s.Loading())
}

func TestCloseCancelsStream(t *testing.T) {
	store := &fakeStore{
		chunks:  []string{"partial", "never"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarness(t, store)
	s := h.session("general")

	done := make(chan bool)
	go func() { done <- s.Send(context.Background(), "q") }()

	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[1].Markdown == "partial"
	}, 2*time.Second, 5*time.Millisecond)

	s.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after Close")
	}

	msgs := s.Messages()
	require.Len(t, msgs, 2, "a closed session does not append an error message")
	assert.Equal(t, "partial", msgs[1].Markdown)
	assert.True(t, s.Closed())
	assert.False(t, s.Send(context.Background(), "again"))

	// Closing keeps the persisted id for the next open.
	_, ok, err := h.ids.Get(context.Background(), "general")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetDuringStream(t *testing.T) {
	store := &fakeStore{
		chunks:  []string{"partial", "never"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarness(t, store)
	s := h.session("general")

	done := make(chan bool)
	go func() { done <- s.Send(context.Background(), "q") }()
	<-store.started

	s.Reset("general")
	<-done

	assert.Empty(t, s.Messages())
	assert.Equal(t, "", s.ConversationID())
	assert.False(t, s.Loading())
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

func TestBootstrapLoadsTranscript(t *testing.T) {
	store := &fakeStore{chunks: []string{"more"}, conversation: `{
		"id": "c9",
		"messages": [
			{"id": 1, "role": "user", "content": "*raw*", "feedback": null},
			{"id": 2, "role": "assistant", "content": "**bold**", "feedback": false,
			 "supporting_docs": [{"content": "d", "metadata": {"title": "Doc"}, "score": 0.4}]}
		]
	}`}
	h := newHarness(t, store)
	require.NoError(t, h.ids.Set(context.Background(), "general", "c9"))

	s := h.session("general")
	s.Bootstrap(context.Background())

	assert.Equal(t, "c9", s.ConversationID())
	msgs := s.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, "*raw*", msgs[0].Content, "user content is never rendered")
	assert.Equal(t, h.renderer.Render("**bold**"), msgs[1].Content)
	assert.Equal(t, model.FeedbackNegative, msgs[1].Feedback)
	require.NotNil(t, msgs[1].MessageID)
	assert.Equal(t, int64(2), *msgs[1].MessageID)
	require.Len(t, msgs[1].SupportingDocs, 1)
	assert.Equal(t, "Doc", msgs[1].SupportingDocs[0].DisplayTitle())

	// The resumed conversation is reused.
	require.True(t, s.Send(context.Background(), "follow up"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&store.creates))
	assert.Equal(t, "c9", store.last()["conversation_id"])
}

func TestBootstrapWithoutPersistedID(t *testing.T) {
	h := newHarness(t, &fakeStore{})
	s := h.session("general")
	s.Bootstrap(context.Background())

	assert.Empty(t, s.Messages())
	assert.Equal(t, "", s.ConversationID())
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.store.gets))
}

func TestBootstrapLoadFailureDiscardsID(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{name: "network error", store: &fakeStore{getHijack: true}},
		{name: "server error", store: &fakeStore{getStatus: http.StatusInternalServerError}},
		{name: "malformed payload", store: &fakeStore{conversation: `{"messages": [`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, tt.store)
			require.NoError(t, h.ids.Set(ctx, "billing", "stale"))
			require.NoError(t, h.ids.Set(ctx, "general", "keep"))

			s := h.session("billing")
			s.Bootstrap(ctx)

			_, ok, err := h.ids.Get(ctx, "billing")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, s.Messages())
			assert.Equal(t, "", s.ConversationID())

			id, ok, err := h.ids.Get(ctx, "general")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "keep", id)
		})
	}
}

// =============================================================================
// FEEDBACK
// =============================================================================

func TestSubmitFeedback(t *testing.T) {
	store := &fakeStore{chunks: []string{"answer"}, messageID: "7"}
	h := newHarness(t, store)
	s := h.session("general")
	require.True(t, s.Send(context.Background(), "q"))

	s.SubmitFeedback(context.Background(), 7, true)

	msgs := s.Messages()
	assert.Equal(t, model.FeedbackPositive, msgs[1].Feedback)
	assert.Equal(t, model.FeedbackUnset, msgs[0].Feedback)
	calls := store.feedbackCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, api.FeedbackRequest{MessageID: 7, Feedback: true}, calls[0])

	s.SubmitFeedback(context.Background(), 7, false)
	assert.Equal(t, model.FeedbackNegative, s.Messages()[1].Feedback)
}

func TestSubmitFeedbackUnknownID(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"answer"}, messageID: "7"})
	s := h.session("general")
	require.True(t, s.Send(context.Background(), "q"))
	before := s.Messages()

	s.SubmitFeedback(context.Background(), 999, true)

	after := s.Messages()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Feedback, after[i].Feedback)
	}
}

func TestSubmitFeedbackFailureLeavesTranscript(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"answer"}, messageID: "7", feedbackStatus: http.StatusInternalServerError})
	s := h.session("general")
	require.True(t, s.Send(context.Background(), "q"))

	s.SubmitFeedback(context.Background(), 7, true)
	assert.Equal(t, model.FeedbackUnset, s.Messages()[1].Feedback)
}

// =============================================================================
// RESET
// =============================================================================

func TestResetIsScopedToDomain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &fakeStore{chunks: []string{"answer"}})
	require.NoError(t, h.ids.Set(ctx, "other", "c-other"))

	s := h.session("general")
	require.True(t, s.Send(ctx, "q"))
	require.NotEmpty(t, s.ConversationID())

	s.Reset("general")

	assert.Empty(t, s.Messages())
	assert.Equal(t, "", s.ConversationID())
	_, ok, err := h.ids.Get(ctx, "general")
	require.NoError(t, err)
	assert.False(t, ok)

	id, ok, err := h.ids.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c-other", id)

	// Idempotent.
	s.Reset("general")
	assert.Empty(t, s.Messages())
}

func TestResetOtherDomainKeepsTranscript(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &fakeStore{chunks: []string{"answer"}})
	require.NoError(t, h.ids.Set(ctx, "other", "c-other"))

	s := h.session("general")
	require.True(t, s.Send(ctx, "q"))

	s.Reset("other")

	assert.Len(t, s.Messages(), 2)
	_, ok, err := h.ids.Get(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// OBSERVERS
// =============================================================================

func TestSubscribeSeesStreamingStates(t *testing.T) {
	h := newHarness(t, &fakeStore{chunks: []string{"a", "b"}})
	s := h.session("general")

	var mu sync.Mutex
	var states []State
	var sawContent bool
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, snap.State)
		if n := len(snap.Messages); n > 0 && snap.Messages[n-1].Content != "" {
			sawContent = true
		}
	})

	require.True(t, s.Send(context.Background(), "q"))

	mu.Lock()
	assert.Contains(t, states, StateAwaitingConversation)
	assert.Contains(t, states, StateStreaming)
	assert.Equal(t, StateIdle, states[len(states)-1])
	assert.True(t, sawContent)
	count := len(states)
	mu.Unlock()

	unsubscribe()
	s.Reset("")
	mu.Lock()
	assert.Equal(t, count, len(states))
	mu.Unlock()
}

func TestObserversSeeSnapshotsInOrder(t *testing.T) {
	store := &fakeStore{
		chunks:    []string{"first ", "second"},
		messageID: "7",
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	h := newHarness(t, store)
	s := h.session("general")

	feedbackSeen := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once

	var mu sync.Mutex
	var last Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		n := len(snap.Messages)
		if snap.Loading && n > 0 && snap.Messages[n-1].Feedback == model.FeedbackPositive {
			// Hold the feedback snapshot while the stream finishes.
			once.Do(func() {
				close(feedbackSeen)
				<-proceed
			})
		}
		mu.Lock()
		last = snap
		mu.Unlock()
	})
	defer unsubscribe()

	done := make(chan bool)
	go func() { done <- s.Send(context.Background(), "q") }()

	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[1].MessageID != nil && msgs[1].Markdown == "first "
	}, 2*time.Second, 5*time.Millisecond)

	rated := make(chan struct{})
	go func() {
		s.SubmitFeedback(context.Background(), 7, true)
		close(rated)
	}()

	select {
	case <-feedbackSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("feedback snapshot was not delivered")
	}

	close(store.release)
	time.Sleep(50 * time.Millisecond)
	close(proceed)

	require.True(t, <-done)
	<-rated

	assert.False(t, s.Loading())
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, last.Loading, "the final snapshot delivered must be the newest")
	assert.Equal(t, StateIdle, last.State)
	require.Len(t, last.Messages, 2)
	assert.Equal(t, "first second", last.Messages[1].Markdown)
	assert.Equal(t, model.FeedbackPositive, last.Messages[1].Feedback)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting_conversation", StateAwaitingConversation.String())
	assert.Equal(t, "streaming", StateStreaming.String())
}
