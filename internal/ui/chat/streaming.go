// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docchat/internal/session"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer coalesces session snapshots between frames. A session
// notifies on every chunk; rendering the transcript through glamour on each
// one would pin a CPU, so only the newest snapshot is kept and it is handed
// out at most maxFPS times per second.
//
// Write is called from the bridge goroutine and Flush from the Bubble Tea
// loop, so all operations are protected by a mutex.
type StreamingBuffer struct {
	mu        sync.Mutex
	pending   *session.Snapshot
	coalesced int
	lastFlush time.Time

	maxFPS     int
	minFlushMs time.Duration
}

const defaultMaxFPS = 30

// NewStreamingBuffer creates a buffer flushing at most maxFPS times per
// second. Values outside 1..120 fall back to 30.
func NewStreamingBuffer(maxFPS int) *StreamingBuffer {
	if maxFPS <= 0 || maxFPS > 120 {
		maxFPS = defaultMaxFPS
	}
	return &StreamingBuffer{
		maxFPS:     maxFPS,
		minFlushMs: time.Second / time.Duration(maxFPS),
		lastFlush:  time.Now(),
	}
}

// Write replaces the pending snapshot.
func (sb *StreamingBuffer) Write(snap session.Snapshot) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.pending = &snap
	sb.coalesced++
}

// Flush returns the pending snapshot if a frame interval has passed since
// the last flush.
func (sb *StreamingBuffer) Flush() (session.Snapshot, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.pending == nil || time.Since(sb.lastFlush) < sb.minFlushMs {
		return session.Snapshot{}, false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns the pending snapshot regardless of timing. Used when a
// stream ends so the final frame is never dropped.
func (sb *StreamingBuffer) ForceFlush() (session.Snapshot, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.pending == nil {
		return session.Snapshot{}, false
	}
	return sb.takeLocked(), true
}

func (sb *StreamingBuffer) takeLocked() session.Snapshot {
	snap := *sb.pending
	sb.pending = nil
	sb.coalesced = 0
	sb.lastFlush = time.Now()
	return snap
}

// Reset drops any pending snapshot.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.pending = nil
	sb.coalesced = 0
	sb.lastFlush = time.Now()
}

// Pending returns how many snapshots were coalesced since the last flush.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.coalesced
}

// Interval returns the minimum time between flushes.
func (sb *StreamingBuffer) Interval() time.Duration {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.minFlushMs
}

// streamTickCmd schedules the next frame.
func streamTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}

// =============================================================================
// SESSION BRIDGE
// =============================================================================

// bridge moves session notifications onto a channel the Bubble Tea loop can
// wait on. Observers must not block, so the channel holds one snapshot and a
// newer one replaces it.
type bridge struct {
	sess    *session.Session
	updates chan session.Snapshot
	done    chan struct{}
	once    sync.Once
	unsub   func()
}

func newBridge(sess *session.Session) *bridge {
	b := &bridge{
		sess:    sess,
		updates: make(chan session.Snapshot, 1),
		done:    make(chan struct{}),
	}
	b.unsub = sess.Subscribe(b.push)
	return b
}

func (b *bridge) push(snap session.Snapshot) {
	for {
		select {
		case b.updates <- snap:
			return
		default:
		}
		select {
		case <-b.updates:
		default:
		}
	}
}

// wait returns a command that delivers the next snapshot, or nothing once
// the bridge is stopped.
func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-b.updates:
			return SnapshotMsg{Session: b.sess, Snapshot: snap}
		case <-b.done:
			return nil
		}
	}
}

func (b *bridge) stop() {
	b.once.Do(func() {
		b.unsub()
		close(b.done)
	})
}
