// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// FEEDBACK
// =============================================================================

// Feedback is the user's rating of an assistant message.
// The zero value is FeedbackUnset.
type Feedback int8

const (
	FeedbackUnset Feedback = iota
	FeedbackPositive
	FeedbackNegative
)

// FeedbackFromBool converts the wire boolean into a Feedback.
func FeedbackFromBool(positive bool) Feedback {
	if positive {
		return FeedbackPositive
	}
	return FeedbackNegative
}

// String returns "unset", "positive" or "negative".
func (f Feedback) String() string {
	switch f {
	case FeedbackPositive:
		return "positive"
	case FeedbackNegative:
		return "negative"
	default:
		return "unset"
	}
}

// IsSet reports whether the user has rated the message.
func (f Feedback) IsSet() bool {
	return f == FeedbackPositive || f == FeedbackNegative
}

// MarshalJSON encodes Feedback the way the server stores it: true, false or null.
func (f Feedback) MarshalJSON() ([]byte, error) {
	switch f {
	case FeedbackPositive:
		return []byte("true"), nil
	case FeedbackNegative:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (f *Feedback) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = FeedbackPositive
	case "false":
		*f = FeedbackNegative
	case "null", "":
		*f = FeedbackUnset
	default:
		return fmt.Errorf("invalid feedback value %s", data)
	}
	return nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one transcript entry.
//
// Content holds raw text for user messages and rendered HTML for assistant
// messages. Markdown keeps the assistant's source text so terminal views can
// render it without parsing HTML back.
type Message struct {
	// Identity
	ID        string    `json:"id"`         // local, never sent to the server
	MessageID *int64    `json:"message_id"` // server-assigned, assistant only
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// Content
	Content  string `json:"content"`
	Markdown string `json:"markdown,omitempty"`

	// Assistant-only
	Feedback       Feedback             `json:"feedback"`
	SupportingDocs []SupportingDocument `json:"supporting_docs,omitempty"`

	// Streaming state (not persisted)
	IsStreaming bool `json:"-"`
	IsError     bool `json:"-"`
}

// NewMessage creates a message with a fresh local ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a user message. The text is stored verbatim.
func NewUserMessage(text string) *Message {
	return NewMessage(RoleUser, text)
}

// NewPlaceholder creates the empty assistant message that a response stream
// fills in place. messageID may be nil when the server sent no id.
func NewPlaceholder(messageID *int64) *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.MessageID = messageID
	msg.SupportingDocs = []SupportingDocument{}
	msg.IsStreaming = true
	return msg
}

// NewErrorMessage creates the synthetic assistant message shown when a
// submission fails. It never carries a server id.
func NewErrorMessage(text string) *Message {
	msg := NewMessage(RoleAssistant, text)
	msg.Markdown = text
	msg.IsError = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// HasMessageID reports whether the server has assigned an id.
func (m *Message) HasMessageID() bool {
	return m.MessageID != nil
}

// ServerID returns the server id, or 0 when unset.
func (m *Message) ServerID() int64 {
	if m.MessageID == nil {
		return 0
	}
	return *m.MessageID
}

// CanRate reports whether feedback controls apply to this message.
func (m *Message) CanRate() bool {
	return m.Role == RoleAssistant && m.MessageID != nil && !m.IsError
}

// IsEmpty reports whether the message has no content yet.
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.Markdown == ""
}

// DisplayText returns the text a terminal view should render: the markdown
// source for assistant messages, the raw text otherwise.
func (m *Message) DisplayText() string {
	if m.Role == RoleAssistant && m.Markdown != "" {
		return m.Markdown
	}
	return m.Content
}

// Clone returns a deep copy safe to hand to another goroutine.
func (m *Message) Clone() *Message {
	c := *m
	if m.MessageID != nil {
		id := *m.MessageID
		c.MessageID = &id
	}
	if m.SupportingDocs != nil {
		c.SupportingDocs = make([]SupportingDocument, len(m.SupportingDocs))
		for i, d := range m.SupportingDocs {
			c.SupportingDocs[i] = d.Clone()
		}
	}
	return &c
}

// Int64 returns a pointer to v. Convenience for message ids.
func Int64(v int64) *int64 {
	return &v
}
