// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the read buffer size for response bodies.
const DefaultChunkSize = 4096

// ErrNoBody is returned when a response has no readable body.
var ErrNoBody = errors.New("response has no readable body")

// NewDecoder wraps r so its output is valid UTF-8: a rune split across
// network reads is held until its remaining bytes arrive, and invalid bytes
// become U+FFFD. A Read into a small buffer can still end mid-rune; Reader
// carries such tails over to the next chunk.
func NewDecoder(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.UTF8.NewDecoder())
}

// Callback receives each Result in arrival order, on the reading goroutine.
type Callback func(Result)

// =============================================================================
// STREAM READER
// =============================================================================

// Reader pumps a response body through a Demuxer.
type Reader struct {
	src       io.Reader
	demux     *Demuxer
	chunkSize int
	carry     []byte
	stats     Stats
}

// NewReader creates a reader over body. body is decoded as UTF-8 before it
// reaches the demuxer.
func NewReader(body io.Reader, demux *Demuxer) *Reader {
	return &Reader{
		src:       NewDecoder(body),
		demux:     demux,
		chunkSize: DefaultChunkSize,
	}
}

// WithChunkSize overrides the read buffer size. Tests use tiny sizes to
// force sentinels and runes across reads.
func (r *Reader) WithChunkSize(n int) *Reader {
	if n > 0 {
		r.chunkSize = n
	}
	return r
}

// Process reads until end-of-stream, the end sentinel, or ctx is done.
// callback sees every Result, including the final one from Finish.
// Reading stops at the end sentinel; the caller closes the body.
func (r *Reader) Process(ctx context.Context, callback Callback) error {
	if r.src == nil || r.demux == nil {
		return ErrNoBody
	}
	r.stats.Start = time.Now()
	defer func() { r.stats.End = time.Now() }()

	buf := make([]byte, r.chunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.src.Read(buf)
		if n > 0 {
			r.stats.Chunks++
			r.stats.Bytes += n
		}
		if text := r.complete(buf[:n]); text != "" {
			res := r.demux.Write(text)
			r.record(res)
			callback(res)
			if r.demux.Done() {
				r.stats.SawEnd = true
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(r.carry) > 0 {
					res := r.demux.Write(string(r.carry))
					r.carry = nil
					r.record(res)
					callback(res)
				}
				res := r.demux.Finish()
				r.record(res)
				callback(res)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("stream read failed after %d bytes: %w", r.stats.Bytes, err)
		}
	}
}

// complete returns the longest prefix of carry+data that ends on a rune
// boundary and keeps the rest for the next read.
func (r *Reader) complete(data []byte) string {
	if len(r.carry) > 0 {
		data = append(r.carry, data...)
		r.carry = nil
	}
	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		r.carry = append([]byte(nil), data[cut:]...)
	}
	return string(data[:cut])
}

func (r *Reader) record(res Result) {
	if res.Rerender {
		r.stats.ProseChunks++
		if r.stats.FirstProse.IsZero() {
			r.stats.FirstProse = time.Now()
		}
	}
}

// Stats returns counters for the last Process call.
func (r *Reader) Stats() Stats {
	return r.stats
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// Stats holds counters collected while reading one answer.
type Stats struct {
	Start      time.Time
	FirstProse time.Time
	End        time.Time

	Chunks      int // reads that returned data
	ProseChunks int // reads that triggered a re-render
	Bytes       int
	SawEnd      bool // stopped at the end sentinel rather than EOF
}

// TimeToFirstProse is the delay until the first visible text, or 0.
func (s Stats) TimeToFirstProse() time.Duration {
	if s.FirstProse.IsZero() {
		return 0
	}
	return s.FirstProse.Sub(s.Start)
}

// Duration is the total read time.
func (s Stats) Duration() time.Duration {
	if s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}
