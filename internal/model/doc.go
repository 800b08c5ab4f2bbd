// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the transcript types shared by the session, the API
// client and the views.
//
// # Key Types
//
//   - Conversation: the transcript for one domain plus its server id
//   - Message: a user or assistant entry; assistant content is rendered HTML
//   - Feedback: tri-state rating (unset, positive, negative)
//   - SupportingDocument: a retrieved snippet cited by an answer
//
// # Usage
//
//	conv := model.NewConversation("billing")
//	conv.AddUserMessage("How do refunds work?")
//	conv.AddPlaceholder(model.Int64(42))
//	conv.SetLastContent("<p>Refunds...</p>\n", "Refunds...")
package model
