// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/docchat/internal/model"
)

// Sentinels that frame the supporting-documents JSON inside the answer text.
const (
	DocsStart = "---SUPPORTING_DOCS_START---"
	DocsEnd   = "---SUPPORTING_DOCS_END---"
)

// =============================================================================
// SCAN MODE
// =============================================================================

// Mode selects how sentinels are located.
type Mode int

const (
	// ModeBuffer finds sentinels anywhere in the accumulated text, including
	// across chunk boundaries.
	ModeBuffer Mode = iota
	// ModeChunk only recognizes a sentinel wholly contained in one chunk.
	// Kept for servers whose framing relied on that behavior.
	ModeChunk
)

// ParseMode maps a config string ("buffer", "chunk") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buffer":
		return ModeBuffer, nil
	case "chunk":
		return ModeChunk, nil
	default:
		return ModeBuffer, fmt.Errorf("unknown sentinel mode %q", s)
	}
}

// String returns the config spelling of the mode.
func (m Mode) String() string {
	if m == ModeChunk {
		return "chunk"
	}
	return "buffer"
}

// Section is the demuxer's position in the stream.
type Section int

const (
	SectionProse Section = iota
	SectionDocs
	SectionDone
)

// =============================================================================
// RESULT
// =============================================================================

// Result describes what one Write or Finish changed.
type Result struct {
	// Prose is the text appended to the markdown buffer by this call.
	Prose string
	// Rerender is set when Prose contains visible text and the accumulated
	// markdown should be rendered again.
	Rerender bool
	// EnteredDocs is set when the start sentinel was consumed.
	EnteredDocs bool
	// DocsReady is set when the docs payload was parsed (successfully or not).
	DocsReady bool
	// Done is set once the end sentinel was consumed or the stream finished.
	Done bool
}

// =============================================================================
// DEMUXER
// =============================================================================

// Demuxer splits a decoded answer stream into markdown prose and the
// supporting-documents payload.
//
// Feed it decoded text with Write in arrival order, then call Finish at
// end-of-stream. The end sentinel is terminal: anything written after it is
// ignored. A Demuxer is not safe for concurrent use.
type Demuxer struct {
	mode    Mode
	section Section

	markdown strings.Builder
	docs     []byte
	// held is a prose tail that could be the start of DocsStart. Only used in
	// ModeBuffer.
	held string

	parsed   []model.SupportingDocument
	parseErr error
}

// NewDemuxer creates a demuxer in the prose section.
func NewDemuxer(mode Mode) *Demuxer {
	return &Demuxer{mode: mode}
}

// Write consumes the next decoded chunk.
func (d *Demuxer) Write(chunk string) Result {
	switch d.section {
	case SectionDone:
		return Result{Done: true}
	case SectionDocs:
		return d.writeDocs(chunk)
	}
	if d.mode == ModeChunk {
		return d.writeProseChunk(chunk)
	}
	return d.writeProseBuffered(chunk)
}

// writeProseBuffered scans held+chunk for the start sentinel and holds back
// any suffix that might be the beginning of one.
func (d *Demuxer) writeProseBuffered(chunk string) Result {
	text := d.held + chunk
	d.held = ""

	if idx := strings.Index(text, DocsStart); idx >= 0 {
		res := d.appendProse(text[:idx])
		res.EnteredDocs = true
		d.section = SectionDocs
		rest := d.writeDocs(text[idx+len(DocsStart):])
		res.DocsReady = rest.DocsReady
		res.Done = rest.Done
		return res
	}

	keep := partialSuffix(text, DocsStart)
	d.held = text[len(text)-keep:]
	return d.appendProse(text[:len(text)-keep])
}

func (d *Demuxer) writeProseChunk(chunk string) Result {
	idx := strings.Index(chunk, DocsStart)
	if idx < 0 {
		return d.appendProse(chunk)
	}
	res := d.appendProse(chunk[:idx])
	res.EnteredDocs = true
	d.section = SectionDocs
	rest := d.writeDocs(chunk[idx+len(DocsStart):])
	res.DocsReady = rest.DocsReady
	res.Done = rest.Done
	return res
}

func (d *Demuxer) writeDocs(text string) Result {
	if d.mode == ModeChunk {
		if idx := strings.Index(text, DocsEnd); idx >= 0 {
			d.docs = append(d.docs, text[:idx]...)
			d.finishDocs()
			return Result{DocsReady: true, Done: true}
		}
		d.docs = append(d.docs, text...)
		return Result{}
	}

	// Only the region that could contain a new match is searched.
	from := len(d.docs) - len(DocsEnd) + 1
	if from < 0 {
		from = 0
	}
	d.docs = append(d.docs, text...)
	if idx := bytes.Index(d.docs[from:], []byte(DocsEnd)); idx >= 0 {
		d.docs = d.docs[:from+idx]
		d.finishDocs()
		return Result{DocsReady: true, Done: true}
	}
	return Result{}
}

// appendProse adds text to the markdown buffer. Whitespace-only text is kept
// (it can separate paragraphs) but does not ask for a re-render.
func (d *Demuxer) appendProse(text string) Result {
	if text == "" {
		return Result{}
	}
	d.markdown.WriteString(text)
	return Result{Prose: text, Rerender: strings.TrimSpace(text) != ""}
}

func (d *Demuxer) finishDocs() {
	d.parsed, d.parseErr = ParseDocs(d.docs)
	d.section = SectionDone
}

// Finish flushes state at end-of-stream. A held-back prose tail is released
// as prose. An unterminated docs section is parsed as-is.
func (d *Demuxer) Finish() Result {
	switch d.section {
	case SectionProse:
		res := d.appendProse(d.held)
		d.held = ""
		d.section = SectionDone
		res.Done = true
		return res
	case SectionDocs:
		d.finishDocs()
		return Result{DocsReady: true, Done: true}
	default:
		return Result{Done: true}
	}
}

// Markdown returns all prose seen so far.
func (d *Demuxer) Markdown() string {
	return d.markdown.String()
}

// Docs returns the parsed supporting documents. It is empty until the
// payload is complete, and empty when the payload was malformed.
func (d *Demuxer) Docs() []model.SupportingDocument {
	return d.parsed
}

// DocsErr returns the payload parse error, if any.
func (d *Demuxer) DocsErr() error {
	return d.parseErr
}

// RawDocs returns the docs text collected between the sentinels.
func (d *Demuxer) RawDocs() string {
	return string(d.docs)
}

// Section returns the current position in the stream.
func (d *Demuxer) Section() Section {
	return d.section
}

// Done reports whether the stream is finished.
func (d *Demuxer) Done() bool {
	return d.section == SectionDone
}

// =============================================================================
// HELPERS
// =============================================================================

// ErrMalformedDocs wraps every supporting-docs parse failure.
var ErrMalformedDocs = errors.New("malformed supporting documents payload")

// ParseDocs decodes the payload between the sentinels. Blank input and JSON
// null yield an empty, non-nil slice. A decode failure yields an empty slice
// and an error wrapping ErrMalformedDocs.
func ParseDocs(raw []byte) ([]model.SupportingDocument, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []model.SupportingDocument{}, nil
	}
	var docs []model.SupportingDocument
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		return []model.SupportingDocument{}, fmt.Errorf("%w: %v", ErrMalformedDocs, err)
	}
	if docs == nil {
		docs = []model.SupportingDocument{}
	}
	return docs, nil
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of sentinel.
func partialSuffix(s, sentinel string) int {
	longest := len(sentinel) - 1
	if longest > len(s) {
		longest = len(s)
	}
	for n := longest; n > 0; n-- {
		if strings.HasSuffix(s, sentinel[:n]) {
			return n
		}
	}
	return 0
}
