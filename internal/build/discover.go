package build

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// Source is one discovered deck.
type Source struct {
	Name string // file name within the source directory
	Path string
	Slug string
}

// IsSource reports whether name is a deck file: a visible, non-temporary
// file carrying one of exts.
func IsSource(name string, exts []string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return false
	}
	return slices.Contains(exts, ext)
}

// SlugOf returns name without its extension.
func SlugOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Discover lists the decks in dir, sorted by file name. Subdirectories are
// not descended into. When two files share a slug the first in sort order wins.
func Discover(dir string, exts []string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ferrors.WrapError(fmt.Errorf("%w: %w", ErrDiscoveryFailed, err), ferrors.CategoryDiscovery,
			"failed to list source directory").
			WithContext("dir", dir).
			Build()
	}

	// ReadDir sorts by file name.
	seen := make(map[string]bool, len(entries))
	var out []Source
	for _, e := range entries {
		if e.IsDir() || !IsSource(e.Name(), exts) {
			continue
		}
		slug := SlugOf(e.Name())
		if seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, Source{Name: e.Name(), Path: filepath.Join(dir, e.Name()), Slug: slug})
	}
	return out, nil
}
