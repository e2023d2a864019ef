// Package manifest defines the deck catalog and its persistence.
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// DefaultURLPrefix is the public path artifacts are addressed under.
const DefaultURLPrefix = "/slide/"

// Entry describes one buildable presentation.
type Entry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	File        string `json:"file"`
	URL         string `json:"url"`
}

// Manifest is the ordered catalog of presentations.
type Manifest struct {
	Presentations []Entry `json:"presentations"`
}

// Record is the per-source input to Build.
type Record struct {
	Slug        string
	Title       string
	Description string
	SourceFile  string
}

// URLFor returns the artifact URL for a deck id.
func URLFor(prefix, id string) string {
	if prefix == "" {
		prefix = DefaultURLPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + url.PathEscape(id) + ".html"
}

// Build returns a fresh manifest for records in the given order. Duplicate
// ids are rejected.
func Build(prefix string, records []Record) (*Manifest, error) {
	m := &Manifest{Presentations: make([]Entry, 0, len(records))}
	seen := make(map[string]string, len(records))
	for _, r := range records {
		if prev, dup := seen[r.Slug]; dup {
			return nil, ferrors.ValidationError("duplicate presentation id").
				WithContext("id", r.Slug).
				WithContext("files", prev+", "+r.SourceFile).
				Build()
		}
		seen[r.Slug] = r.SourceFile
		m.Presentations = append(m.Presentations, Entry{
			ID:          r.Slug,
			Title:       r.Title,
			Description: r.Description,
			File:        r.SourceFile,
			URL:         URLFor(prefix, r.Slug),
		})
	}
	return m, nil
}

// Find returns the entry with the given id.
func (m *Manifest) Find(id string) (Entry, bool) {
	for _, e := range m.Presentations {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// IDs returns the entry ids in order.
func (m *Manifest) IDs() []string {
	ids := make([]string, len(m.Presentations))
	for i, e := range m.Presentations {
		ids[i] = e.ID
	}
	return ids
}

// ToJSON serializes the manifest with two-space indentation and a trailing
// newline. An empty manifest encodes its sequence as [].
func (m *Manifest) ToJSON() ([]byte, error) {
	out := *m
	if out.Presentations == nil {
		out.Presentations = []Entry{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// FromJSON deserializes a manifest.
func FromJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Presentations == nil {
		m.Presentations = []Entry{}
	}
	return &m, nil
}

// Digest is a content hash of the serialized manifest, used to detect
// whether a pass changed the catalog.
func (m *Manifest) Digest() string {
	data, err := m.ToJSON()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
