// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "fmt"

// Content types for SupportingDocument.ContentType.
const (
	ContentTypeExcerpt  = "excerpt"
	ContentTypeAbstract = "abstract"
)

// DocumentMetadata is the free-form metadata map attached to a retrieved
// document. Known keys are title, domain and s3Key.
type DocumentMetadata map[string]interface{}

// SupportingDocument is a retrieved reference snippet cited by an answer.
type SupportingDocument struct {
	Content     string           `json:"content"`
	ContentType string           `json:"content_type,omitempty"`
	Metadata    DocumentMetadata `json:"metadata,omitempty"`
	Score       *float64         `json:"score,omitempty"`
}

func (m DocumentMetadata) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Title returns metadata.title, or "" when absent.
func (m DocumentMetadata) Title() string { return m.str("title") }

// Domain returns metadata.domain.
func (m DocumentMetadata) Domain() string { return m.str("domain") }

// S3Key returns metadata.s3Key (s3_key is accepted too).
func (m DocumentMetadata) S3Key() string { return m.str("s3Key", "s3_key") }

// DisplayTitle returns the title or "Untitled".
func (d SupportingDocument) DisplayTitle() string {
	if t := d.Metadata.Title(); t != "" {
		return t
	}
	return "Untitled"
}

// HasScore reports whether the server sent a relevance score.
func (d SupportingDocument) HasScore() bool {
	return d.Score != nil
}

// ScoreLabel formats the score with two decimals, or "" when absent.
func (d SupportingDocument) ScoreLabel() string {
	if d.Score == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *d.Score)
}

// Clone returns a deep copy.
func (d SupportingDocument) Clone() SupportingDocument {
	c := d
	if d.Score != nil {
		s := *d.Score
		c.Score = &s
	}
	if d.Metadata != nil {
		c.Metadata = make(DocumentMetadata, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// Float64 returns a pointer to v. Convenience for scores.
func Float64(v float64) *float64 {
	return &v
}
