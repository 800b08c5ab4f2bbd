// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// DefaultDomain is the knowledge scope used when none is given.
const DefaultDomain = "general"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the in-memory transcript for one chat domain.
//
// Messages are kept in arrival order. The only in-place mutations are the
// streaming updates to the last message and feedback updates. Conversation
// is not safe for concurrent use; the owning session serializes access.
type Conversation struct {
	ID        string     `json:"id,omitempty"` // server-assigned, empty until first send
	Domain    string     `json:"domain"`
	Messages  []*Message `json:"messages"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewConversation creates an empty transcript for domain.
func NewConversation(domain string) *Conversation {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Conversation{
		Domain:    domain,
		Messages:  make([]*Message, 0),
		UpdatedAt: time.Now(),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends msg.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// AddUserMessage creates and appends a user message.
func (c *Conversation) AddUserMessage(text string) *Message {
	msg := NewUserMessage(text)
	c.AddMessage(msg)
	return msg
}

// AddPlaceholder creates and appends an empty streaming assistant message.
func (c *Conversation) AddPlaceholder(messageID *int64) *Message {
	msg := NewPlaceholder(messageID)
	c.AddMessage(msg)
	return msg
}

// AddErrorMessage appends the synthetic failure message.
func (c *Conversation) AddErrorMessage(text string) *Message {
	msg := NewErrorMessage(text)
	c.AddMessage(msg)
	return msg
}

// Last returns the most recent message, or nil if empty.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// SetLastContent overwrites the last message's rendered content and its
// markdown source. It is a no-op on an empty transcript.
func (c *Conversation) SetLastContent(html, markdown string) {
	last := c.Last()
	if last == nil {
		return
	}
	last.Content = html
	last.Markdown = markdown
	c.UpdatedAt = time.Now()
}

// SetLastMessageID attaches the server id to the last message.
func (c *Conversation) SetLastMessageID(id *int64) {
	if last := c.Last(); last != nil {
		last.MessageID = id
	}
}

// SetLastDocs replaces the last message's supporting documents.
func (c *Conversation) SetLastDocs(docs []SupportingDocument) {
	if last := c.Last(); last != nil {
		last.SupportingDocs = docs
		c.UpdatedAt = time.Now()
	}
}

// FinishLast clears the streaming flag on the last message.
func (c *Conversation) FinishLast() {
	if last := c.Last(); last != nil {
		last.IsStreaming = false
	}
}

// FindByMessageID returns the first message with the given server id.
func (c *Conversation) FindByMessageID(id int64) *Message {
	for _, m := range c.Messages {
		if m.MessageID != nil && *m.MessageID == id {
			return m
		}
	}
	return nil
}

// ApplyFeedback records feedback on the message with server id id.
// It reports whether a message matched; unknown ids leave the transcript
// untouched.
func (c *Conversation) ApplyFeedback(id int64, fb Feedback) bool {
	msg := c.FindByMessageID(id)
	if msg == nil {
		return false
	}
	msg.Feedback = fb
	return true
}

// Reset drops the server id and every message.
func (c *Conversation) Reset() {
	c.ID = ""
	c.Messages = make([]*Message, 0)
	c.UpdatedAt = time.Now()
}

// Replace swaps in a transcript loaded from the server.
func (c *Conversation) Replace(id string, msgs []*Message) {
	c.ID = id
	if msgs == nil {
		msgs = make([]*Message, 0)
	}
	c.Messages = msgs
	c.UpdatedAt = time.Now()
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty reports whether the transcript has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// HasID reports whether a server conversation exists.
func (c *Conversation) HasID() bool {
	return c.ID != ""
}

// Snapshot deep-copies the messages for readers outside the owning goroutine.
func (c *Conversation) Snapshot() []*Message {
	out := make([]*Message, len(c.Messages))
	for i, m := range c.Messages {
		out[i] = m.Clone()
	}
	return out
}
