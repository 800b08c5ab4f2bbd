// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package widget holds the chat widget's session context: whether the chat
// is open, which domain it is bound to, and the session serving it.
package widget

import (
	"context"
	"sync"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/util"
)

// Controller creates a session when the chat opens and destroys it when the
// chat closes. At most one session exists at a time.
type Controller struct {
	mu      sync.Mutex
	deps    session.Deps
	open    bool
	domain  string
	current *session.Session
}

// NewController creates a closed controller.
func NewController(deps session.Deps) *Controller {
	return &Controller{deps: deps, domain: model.DefaultDomain}
}

// Open binds a new session to domain (default "general") and resumes its
// persisted conversation. An already open session is closed first.
func (c *Controller) Open(ctx context.Context, domain string) *session.Session {
	if domain == "" {
		domain = model.DefaultDomain
	}

	c.mu.Lock()
	if c.current != nil {
		c.current.Close()
	}
	s := session.New(c.deps, domain)
	c.current = s
	c.domain = domain
	c.open = true
	c.mu.Unlock()

	s.Bootstrap(ctx)
	return s
}

// Close destroys the session, canceling any in-flight answer. The persisted
// conversation id is kept.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
	c.open = false
}

// Session returns the open session, or nil when closed.
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// IsOpen reports whether the chat is open.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Domain returns the domain of the last Open.
func (c *Controller) Domain() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domain
}

// Title returns the header for the open domain.
func (c *Controller) Title() string {
	return Title(c.Domain())
}

// Title is "AI Assistant" for the general domain and "{Domain} Assistant"
// otherwise.
func Title(domain string) string {
	if domain == "" || domain == model.DefaultDomain {
		return "AI Assistant"
	}
	return util.Capitalize(domain) + " Assistant"
}
