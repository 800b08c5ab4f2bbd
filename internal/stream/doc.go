// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the chat answer stream.
//
// The search endpoint answers with plain UTF-8 text: markdown prose,
// optionally followed by a JSON array of supporting documents framed by
// DocsStart and DocsEnd. Reader turns network reads into complete UTF-8
// text and feeds a Demuxer, which separates the two and reports after every
// chunk whether the prose should be rendered again.
//
// # Usage
//
//	demux := stream.NewDemuxer(stream.ModeBuffer)
//	err := stream.NewReader(resp.Body, demux).Process(ctx, func(r stream.Result) {
//	    if r.Rerender {
//	        render(demux.Markdown())
//	    }
//	})
//	docs := demux.Docs()
package stream
