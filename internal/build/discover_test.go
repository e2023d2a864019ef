package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSource(t *testing.T) {
	exts := []string{".md"}
	cases := map[string]bool{
		"intro.md":      true,
		"intro.MD":      false,
		".intro.md":     false,
		"intro.md~":     false,
		".#intro.md":    false,
		"intro.md.swp":  false,
		"intro.txt":     false,
		".md":           false,
		"":              false,
		"my.deck.md":    true,
		"with space.md": true,
	}
	for name, want := range cases {
		require.Equal(t, want, IsSource(name, exts), name)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.md", "a.md", "a.markdown", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o600))
	}

	got, err := Discover(dir, []string{".md", ".markdown"})
	require.NoError(t, err)
	require.Equal(t, []Source{
		{Name: "a.markdown", Path: filepath.Join(dir, "a.markdown"), Slug: "a"},
		{Name: "b.md", Path: filepath.Join(dir, "b.md"), Slug: "b"},
	}, got)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), []string{".md"})
	require.ErrorIs(t, err, ErrDiscoveryFailed)
}
