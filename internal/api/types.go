// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/docchat/internal/model"
)

// MessageIDHeader carries the server id of the assistant message being streamed.
const MessageIDHeader = "X-Message-ID"

// =============================================================================
// FLEXIBLE IDS
// =============================================================================

// ID is a server identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON accepts "abc", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id text.
func (id ID) String() string { return string(id) }

// Int64 parses the id as a base-10 integer. Non-numeric ids yield nil.
func (id ID) Int64() *int64 {
	return ParseMessageID(string(id))
}

// ParseMessageID parses a message id header value. Absent or unparsable values
// yield nil.
func ParseMessageID(v string) *int64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	Domain string `json:"domain"`
}

// CreateConversationResponse is the reply to POST /conversations.
type CreateConversationResponse struct {
	ID ID `json:"id"`
}

// StoredMessage is one message as returned by GET /conversations/{id}.
type StoredMessage struct {
	ID             ID                         `json:"id"`
	Role           string                     `json:"role"`
	Content        string                     `json:"content"`
	Feedback       model.Feedback             `json:"feedback"`
	SupportingDocs []model.SupportingDocument `json:"supporting_docs,omitempty"`
	CreatedAt      string                     `json:"created_at,omitempty"`
}

// Timestamp parses CreatedAt, returning the zero time when absent or unparsable.
func (m StoredMessage) Timestamp() time.Time {
	if m.CreatedAt == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, m.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// StoredConversation is the reply to GET /conversations/{id}.
type StoredConversation struct {
	ID       ID              `json:"id"`
	Domain   string          `json:"domain,omitempty"`
	Messages []StoredMessage `json:"messages"`
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchRequest is the body of POST /search. Location fields are sent only
// when known.
type SearchRequest struct {
	Query          string   `json:"query"`
	Domain         string   `json:"domain"`
	ConversationID string   `json:"conversation_id"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Country        string   `json:"country,omitempty"`
}

// SearchResponse is an open answer stream. The caller must close Body.
type SearchResponse struct {
	MessageID  *int64
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Close closes the answer body.
func (r *SearchResponse) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// =============================================================================
// FEEDBACK
// =============================================================================

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	MessageID int64 `json:"message_id"`
	Feedback  bool  `json:"feedback"`
}
