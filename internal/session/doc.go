// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the streaming chat session for one domain.
//
// A Session owns a transcript and its conversation id. Bootstrap resumes the
// conversation persisted for the domain; Send creates the conversation on
// first use, posts the question and streams the answer into a placeholder
// assistant message, re-rendering the accumulated markdown on every visible
// chunk. SubmitFeedback and Reset complete the lifecycle.
//
// States:
//
//	IDLE --Send--> AWAITING_CONVERSATION --placeholder--> STREAMING --end--> IDLE
//
// Failures never escape: create and search failures append a single error
// message to the transcript, load and feedback failures are only logged.
//
// A Session is safe for concurrent use. Send blocks until the answer is
// complete; a second Send while one is in flight is rejected.
package session
