// Package metadata recovers a deck's display title and short description
// from its Markdown source.
package metadata

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/deckbuilder/internal/frontmatter"
)

// Metadata is the display information of one deck.
type Metadata struct {
	Title       string
	Description string
}

// Extract returns the title and description of a deck source.
//
// The title is the first level-1 ATX heading; the slug is used when there is
// none. The description is the first line of the first block quote, or empty.
// Extract never fails.
func Extract(slug string, content []byte) Metadata {
	body := content
	if doc, err := frontmatter.Split(content); err == nil {
		body = doc.Body
	}

	md := Metadata{}
	root := goldmark.New().Parser().Parse(text.NewReader(body))
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if md.Title == "" && node.Level == 1 && isATX(node, body) {
				md.Title = firstLine(node, body)
			}
			return gmast.WalkSkipChildren, nil
		case *gmast.Blockquote:
			if md.Description == "" {
				md.Description = quoteLine(node, body)
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})

	if md.Title == "" {
		md.Title = slug
	}
	return md
}

// isATX distinguishes `# Title` from setext headings, which goldmark reports
// with the same level.
func isATX(h *gmast.Heading, source []byte) bool {
	lines := h.Lines()
	if lines.Len() == 0 {
		// `#` alone is an empty ATX heading.
		return false
	}
	start := lines.At(0).Start
	lineStart := bytes.LastIndexByte(source[:start], '\n') + 1
	return bytes.HasPrefix(bytes.TrimLeft(source[lineStart:start], " "), []byte("#"))
}

func firstLine(n gmast.Node, source []byte) string {
	lines := n.Lines()
	if lines.Len() == 0 {
		return ""
	}
	seg := lines.At(0)
	return strings.TrimSpace(string(seg.Value(source)))
}

func quoteLine(q *gmast.Blockquote, source []byte) string {
	if c := q.FirstChild(); c != nil {
		if line := firstLine(c, source); line != "" {
			return line
		}
	}
	return rawQuoteLine(q, source)
}

// rawQuoteLine returns the quote's first source line without its marker, for
// quotes that open with a list or another container block.
func rawQuoteLine(q *gmast.Blockquote, source []byte) string {
	start := -1
	_ = gmast.Walk(q, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if entering && n.Type() == gmast.TypeBlock && n.Lines().Len() > 0 {
			start = n.Lines().At(0).Start
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	if start < 0 {
		return ""
	}
	line := source[bytes.LastIndexByte(source[:start], '\n')+1:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimPrefix(bytes.TrimLeft(line, " \t"), []byte(">"))
	return strings.TrimSpace(string(line))
}
