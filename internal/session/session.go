// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat/internal/api"
	"github.com/jeranaias/docchat/internal/geo"
	"github.com/jeranaias/docchat/internal/markdown"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/storage"
	"github.com/jeranaias/docchat/internal/stream"
	"github.com/jeranaias/docchat/internal/telemetry"
	"github.com/jeranaias/docchat/internal/util"
)

// DefaultErrorText is appended to the transcript when a submission fails.
const DefaultErrorText = "Error processing your request"

// =============================================================================
// STATE
// =============================================================================

// State is the submission state machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingConversation
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConversation:
		return "awaiting_conversation"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Client is the conversation service as seen by a session. *api.Client
// implements it.
type Client interface {
	CreateConversation(ctx context.Context, domain string) (string, error)
	GetConversation(ctx context.Context, id string) (*api.StoredConversation, error)
	Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error)
	SubmitFeedback(ctx context.Context, messageID int64, positive bool) error
}

// LocationSource supplies the optional location sent with searches.
// *geo.Preferences implements it.
type LocationSource interface {
	Location(ctx context.Context) geo.Location
}

// Deps are the collaborators of a Session. Client and IDs are required.
type Deps struct {
	Client   Client
	IDs      *storage.ConversationIDs
	Renderer markdown.Renderer
	Location LocationSource
	Log      zerolog.Logger
	Metrics  *telemetry.Metrics

	// Mode selects buffer-wide or chunk-local sentinel scanning.
	Mode stream.Mode
	// ErrorText replaces DefaultErrorText when set.
	ErrorText string
	// ChunkSize overrides the stream read size.
	ChunkSize int
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a consistent copy of the session handed to observers.
type Snapshot struct {
	Domain         string
	ConversationID string
	State          State
	Loading        bool
	Messages       []*model.Message
}

// Observer receives a snapshot after every transcript or state change.
// Observers run on the goroutine that made the change, one snapshot at a
// time and in order. They must not block or call back into the session.
type Observer func(Snapshot)

type subscriber struct {
	id int
	fn Observer
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the streaming chat session for one domain.
type Session struct {
	mu sync.Mutex
	// notifyMu is held from taking a snapshot until every observer has
	// received it, so observers see snapshots in the order they were taken.
	// Lock order: notifyMu before mu.
	notifyMu sync.Mutex

	domain string
	conv   *model.Conversation

	state   State
	loading bool
	closed  bool

	// gen changes on Reset and Close; a submission only mutates the
	// transcript while its captured gen is current.
	gen    uint64
	cancel context.CancelFunc

	subs   []subscriber
	nextID int

	client    Client
	ids       *storage.ConversationIDs
	renderer  markdown.Renderer
	location  LocationSource
	log       zerolog.Logger
	metrics   *telemetry.Metrics
	mode      stream.Mode
	errorText string
	chunkSize int
}

// New creates an idle session with an empty transcript for domain. An empty
// domain means model.DefaultDomain.
func New(deps Deps, domain string) *Session {
	if domain == "" {
		domain = model.DefaultDomain
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = markdown.NewHTMLRenderer(markdown.DefaultHTMLOptions())
	}
	errorText := deps.ErrorText
	if errorText == "" {
		errorText = DefaultErrorText
	}

	return &Session{
		domain:    domain,
		conv:      model.NewConversation(domain),
		client:    deps.Client,
		ids:       deps.IDs,
		renderer:  renderer,
		location:  deps.Location,
		log:       deps.Log.With().Str("domain", domain).Logger(),
		metrics:   deps.Metrics,
		mode:      deps.Mode,
		errorText: errorText,
		chunkSize: deps.ChunkSize,
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Domain returns the domain the session is bound to.
func (s *Session) Domain() string {
	return s.domain
}

// Messages returns a deep copy of the transcript.
func (s *Session) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Snapshot()
}

// ConversationID returns the server conversation id, or "" before the first
// send.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.ID
}

// Loading reports whether a submission is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// State returns the submission state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current session snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Domain:         s.domain,
		ConversationID: s.conv.ID,
		State:          s.state,
		Loading:        s.loading,
		Messages:       s.conv.Snapshot(),
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// apply runs fn under the lock if gen is still current and reports whether it
// ran.
func (s *Session) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.notify()
	return true
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// Bootstrap resumes the conversation persisted for the session's domain.
// Without a persisted id the transcript stays empty. A failed load removes
// the persisted id and leaves the transcript empty.
func (s *Session) Bootstrap(ctx context.Context) {
	s.mu.Lock()
	if s.loading || s.closed {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.mu.Unlock()

	id, ok, err := s.ids.Get(ctx, s.domain)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read persisted conversation id")
		return
	}
	if !ok {
		return
	}

	stored, err := s.client.GetConversation(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation_id", id).Msg("failed to load conversation, discarding persisted id")
		if rmErr := s.ids.Remove(ctx, s.domain); rmErr != nil {
			s.log.Error().Err(rmErr).Msg("failed to remove persisted conversation id")
		}
		s.apply(gen, func() { s.conv.Reset() })
		return
	}

	msgs := s.mapStored(stored.Messages)
	convID := stored.ID.String()
	if convID == "" {
		convID = id
	}

	s.apply(gen, func() { s.conv.Replace(convID, msgs) })
	s.log.Debug().Str("conversation_id", convID).Int("messages", len(msgs)).Msg("conversation loaded")
}

// mapStored converts server messages, rendering assistant markdown to HTML.
func (s *Session) mapStored(stored []api.StoredMessage) []*model.Message {
	msgs := make([]*model.Message, 0, len(stored))
	for _, sm := range stored {
		role := model.Role(sm.Role)
		msg := model.NewMessage(role, sm.Content)
		if role == model.RoleAssistant {
			msg.Markdown = sm.Content
			msg.Content = s.renderer.Render(sm.Content)
		}
		msg.MessageID = sm.ID.Int64()
		msg.Feedback = sm.Feedback
		if ts := sm.Timestamp(); !ts.IsZero() {
			msg.CreatedAt = ts
		}
		if len(sm.SupportingDocs) > 0 {
			msg.SupportingDocs = sm.SupportingDocs
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Send submits text and streams the answer into the transcript. It blocks
// until the answer is complete or has failed, and reports whether the
// submission was accepted. Blank text and calls made while another
// submission is in flight are rejected without side effects.
func (s *Session) Send(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.loading || s.closed {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.loading = true
	s.state = StateAwaitingConversation
	s.cancel = cancel
	gen := s.gen
	convID := s.conv.ID
	s.mu.Unlock()
	s.notify()

	defer func() {
		cancel()
		s.apply(gen, func() {
			s.loading = false
			s.state = StateIdle
			s.cancel = nil
		})
	}()

	if err := s.exchange(ctx, gen, convID, text); err != nil {
		s.fail(gen, err)
	}
	return true
}

// errStale means Reset or Close superseded the submission.
var errStale = errors.New("submission superseded")

func (s *Session) exchange(ctx context.Context, gen uint64, convID, text string) error {
	if convID == "" {
		id, err := s.client.CreateConversation(ctx, s.domain)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		if !s.apply(gen, func() { s.conv.ID = id }) {
			return errStale
		}
		if err := s.ids.Set(ctx, s.domain, id); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist conversation id")
		}
		s.log.Info().Str("conversation_id", id).Msg("conversation created")
		convID = id
	}

	if !s.apply(gen, func() {
		s.conv.AddUserMessage(text)
		s.conv.AddPlaceholder(nil)
		s.state = StateStreaming
	}) {
		return errStale
	}

	req := api.SearchRequest{
		Query:          text,
		Domain:         s.domain,
		ConversationID: convID,
	}
	if s.location != nil {
		loc := s.location.Location(ctx)
		if loc.Latitude != nil && *loc.Latitude != 0 {
			req.Latitude = loc.Latitude
		}
		if loc.Longitude != nil && *loc.Longitude != 0 {
			req.Longitude = loc.Longitude
		}
		req.Country = loc.Country
	}

	resp, err := s.client.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer resp.Close()

	if resp.MessageID != nil {
		if !s.apply(gen, func() { s.conv.SetLastMessageID(resp.MessageID) }) {
			return errStale
		}
	}

	return s.consume(ctx, gen, resp)
}

// consume streams the answer body into the placeholder message.
func (s *Session) consume(ctx context.Context, gen uint64, resp *api.SearchResponse) error {
	if resp.Body == nil {
		return &api.ClientError{Type: api.ErrTypeProtocol, Message: "search response has no readable body"}
	}

	demux := stream.NewDemuxer(s.mode)
	reader := stream.NewReader(resp.Body, demux)
	if s.chunkSize > 0 {
		reader = reader.WithChunkSize(s.chunkSize)
	}

	s.metrics.StreamStarted()
	err := reader.Process(ctx, func(res stream.Result) {
		if res.Rerender {
			md := demux.Markdown()
			html := s.renderer.Render(md)
			s.apply(gen, func() { s.conv.SetLastContent(html, md) })
		}
		if res.DocsReady {
			if docsErr := demux.DocsErr(); docsErr != nil {
				s.metrics.DocsParseFailed()
				s.log.Warn().Err(docsErr).Str("payload", util.TruncateRunes(demux.RawDocs(), 200)).Msg("failed to parse supporting docs")
			}
		}
	})
	stats := reader.Stats()
	s.metrics.StreamFinished(telemetry.OutcomeOf(err), stats.Duration(), stats.TimeToFirstProse(), stats.Chunks, stats.Bytes)

	if err != nil {
		if errors.Is(err, stream.ErrNoBody) {
			return &api.ClientError{Type: api.ErrTypeProtocol, Message: "search response has no readable body", Cause: err}
		}
		return fmt.Errorf("read answer: %w", err)
	}

	md := demux.Markdown()
	html := s.renderer.Render(md)
	docs := demux.Docs()
	if !s.apply(gen, func() {
		s.conv.SetLastContent(html, md)
		if len(docs) > 0 {
			s.conv.SetLastDocs(docs)
		}
		s.conv.FinishLast()
	}) {
		return errStale
	}

	s.log.Debug().
		Int("bytes", stats.Bytes).
		Int("chunks", stats.Chunks).
		Int("docs", len(docs)).
		Dur("duration", stats.Duration()).
		Msg("answer streamed")
	return nil
}

// fail appends the error message unless the submission was superseded.
func (s *Session) fail(gen uint64, err error) {
	if errors.Is(err, errStale) {
		s.log.Debug().Msg("submission superseded by reset or close")
		return
	}
	applied := s.apply(gen, func() {
		s.conv.FinishLast()
		s.conv.AddErrorMessage(s.errorText)
	})
	if applied {
		s.log.Error().Err(err).Msg("submission failed")
	} else {
		s.log.Debug().Err(err).Msg("submission ended after reset or close")
	}
}

// =============================================================================
// FEEDBACK
// =============================================================================

// SubmitFeedback sends a rating for the assistant message with server id
// messageID. On success the matching message is updated; on failure the
// transcript is left unchanged and the error is only logged.
func (s *Session) SubmitFeedback(ctx context.Context, messageID int64, positive bool) {
	err := s.client.SubmitFeedback(ctx, messageID, positive)
	s.metrics.FeedbackSubmitted(positive, telemetry.OutcomeOf(err))
	if err != nil {
		s.log.Warn().Err(err).Int64("message_id", messageID).Msg("failed to submit feedback")
		return
	}

	s.mu.Lock()
	updated := s.conv.ApplyFeedback(messageID, model.FeedbackFromBool(positive))
	s.mu.Unlock()

	if !updated {
		s.log.Debug().Int64("message_id", messageID).Msg("feedback for unknown message")
		return
	}
	s.notify()
}

// =============================================================================
// RESET / CLOSE
// =============================================================================

// Reset discards the conversation for domain: the persisted id is removed
// and, when domain is the session's own, the transcript and conversation id
// are cleared and any in-flight submission is abandoned. An empty domain
// means the session's domain. Reset makes no network call and is
// idempotent.
func (s *Session) Reset(domain string) {
	if domain == "" {
		domain = s.domain
	}

	if domain == s.domain {
		s.mu.Lock()
		s.gen++
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.loading = false
		s.state = StateIdle
		s.conv.Reset()
		s.mu.Unlock()
	}

	if err := s.ids.Remove(context.Background(), domain); err != nil {
		s.log.Warn().Err(err).Str("reset_domain", domain).Msg("failed to remove persisted conversation id")
	}
	s.metrics.ConversationReset()
	s.notify()
}

// Close ends the session. An in-flight stream is canceled and further
// submissions are rejected. The persisted conversation id is kept so the
// domain can be resumed later.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
	s.state = StateIdle
	s.subs = nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
