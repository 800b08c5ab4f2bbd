// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/docchat/internal/session"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// OpenedMsg is sent when the widget has opened a session and bootstrapped
// its transcript.
type OpenedMsg struct {
	Session *session.Session
}

// SnapshotMsg carries a session change into the Bubble Tea loop. Session
// identifies the sender so that snapshots from a replaced session are
// dropped.
type SnapshotMsg struct {
	Session  *session.Session
	Snapshot session.Snapshot
}

// SendDoneMsg is sent when a submission has finished streaming or failed.
type SendDoneMsg struct {
	Accepted bool
}

// FeedbackDoneMsg reports whether a rating was recorded.
type FeedbackDoneMsg struct {
	MessageID int64
	Positive  bool
	Recorded  bool
}

// StreamTickMsg drives throttled re-rendering while an answer streams.
type StreamTickMsg struct {
	Time time.Time
}

// StatusMsg shows a transient line in the status bar.
type StatusMsg string
