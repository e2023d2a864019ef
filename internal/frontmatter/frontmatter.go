// Package frontmatter separates the leading YAML directive block of a deck
// source from its Markdown body.
package frontmatter

import (
	"bytes"
	"errors"
)

// ErrMissingClosingDelimiter indicates the document started with a front
// matter delimiter but never closed it.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

// Document is a source split into its directive block and body.
type Document struct {
	// Header is the raw YAML between the delimiters (without them).
	Header []byte
	Body   []byte
	// Present reports whether the source started with a front matter block.
	Present bool
	// Newline is the line ending detected in the source.
	Newline string
}

// Split separates `---` delimited front matter from the Markdown body.
//
// A source that does not start with a delimiter yields Present=false and the
// full input as Body.
func Split(content []byte) (Document, error) {
	nl := detectNewline(content)
	doc := Document{Body: content, Newline: nl}

	delim := []byte("---" + nl)
	if !bytes.HasPrefix(content, delim) {
		return doc, nil
	}

	rest := content[len(delim):]
	if bytes.HasPrefix(rest, delim) {
		doc.Header = []byte{}
		doc.Body = rest[len(delim):]
		doc.Present = true
		return doc, nil
	}

	closing := []byte(nl + "---" + nl)
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		// A closing delimiter on the final line has no trailing newline.
		if bytes.HasSuffix(rest, []byte(nl+"---")) {
			doc.Header = rest[:len(rest)-len("---")]
			doc.Body = []byte{}
			doc.Present = true
			return doc, nil
		}
		return Document{Body: content, Newline: nl}, ErrMissingClosingDelimiter
	}

	doc.Header = rest[:idx+len(nl)]
	doc.Body = rest[idx+len(closing):]
	doc.Present = true
	return doc, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
