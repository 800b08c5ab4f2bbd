// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"bytes"
	"html"
	"regexp"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gutil "github.com/yuin/goldmark/util"
)

// Renderer converts accumulated markdown into display content.
// Render must be deterministic: the same input always yields the same output.
type Renderer interface {
	Render(markdown string) string
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(string) string

// Render calls f.
func (f RendererFunc) Render(md string) string { return f(md) }

// =============================================================================
// HTML RENDERER
// =============================================================================

// HTMLOptions configures NewHTMLRenderer.
type HTMLOptions struct {
	// Sanitize runs the output through a UGC allow-list policy.
	Sanitize bool
	// HighlightCode renders fenced code blocks with chroma CSS classes.
	HighlightCode bool
	// CodeStyle is accepted for parity with terminal output; classes are
	// emitted, so the page stylesheet decides colors.
	CodeStyle string
}

// DefaultHTMLOptions returns the options used by the chat session.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		Sanitize:      true,
		HighlightCode: true,
		CodeStyle:     "github",
	}
}

// HTMLRenderer renders GitHub-flavored markdown to HTML. It is safe for
// concurrent use.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// classPattern limits class attributes to what chroma and goldmark emit.
var classPattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// NewHTMLRenderer builds a renderer with opts.
func NewHTMLRenderer(opts HTMLOptions) *HTMLRenderer {
	gmOpts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
	}
	if opts.HighlightCode {
		gmOpts = append(gmOpts, goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(gutil.Prioritized(newCodeBlockRenderer(opts.CodeStyle), 200)),
		))
	}

	r := &HTMLRenderer{md: goldmark.New(gmOpts...)}
	if opts.Sanitize {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Matching(classPattern).OnElements("pre", "code", "span", "div")
		p.AllowAttrs("checked", "disabled", "type").OnElements("input")
		p.AllowElements("input")
		r.policy = p
	}
	return r
}

// Render converts md to HTML. goldmark does not fail on any input; a writer
// error (impossible with bytes.Buffer) falls back to escaped text.
func (r *HTMLRenderer) Render(md string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(md), &buf); err != nil {
		return "<p>" + html.EscapeString(md) + "</p>\n"
	}
	if r.policy != nil {
		return r.policy.Sanitize(buf.String())
	}
	return buf.String()
}

// =============================================================================
// FENCED CODE HIGHLIGHTING
// =============================================================================

type codeBlockRenderer struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

func newCodeBlockRenderer(styleName string) *codeBlockRenderer {
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}
	return &codeBlockRenderer{
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
		style:     style,
	}
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w gutil.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	lang := string(n.Language(source))

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		// Unknown or missing language: plain block, same shape as goldmark's.
		_, _ = w.WriteString(`<pre><code`)
		if lang != "" {
			_, _ = w.WriteString(` class="language-` + html.EscapeString(lang) + `"`)
		}
		_, _ = w.WriteString(`>`)
		_, _ = w.WriteString(html.EscapeString(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkSkipChildren, nil
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, err
	}
	if err := r.formatter.Format(w, r.style, iterator); err != nil {
		return ast.WalkStop, err
	}
	_, _ = w.WriteString("\n")
	return ast.WalkSkipChildren, nil
}
