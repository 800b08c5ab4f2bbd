// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the documentation portal's conversation
// service.
//
// All endpoints live under {BaseURL}{PathPrefix}:
//
//	POST /conversations       {domain}                       -> {id}
//	GET  /conversations/{id}                                 -> {id, messages}
//	POST /search              {query, domain, conversation_id, latitude?, longitude?, country?}
//	                                                         -> streamed answer, X-Message-ID header
//	POST /feedback            {message_id, feedback}         -> 200
//
// Errors are *ClientError values. Use IsTransient, IsMalformed and IsProtocol
// to classify them.
package api
