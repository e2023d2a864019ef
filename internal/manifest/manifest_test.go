package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

func TestURLFor(t *testing.T) {
	require.Equal(t, "/slide/intro.html", URLFor("", "intro"))
	require.Equal(t, "/slide/intro.html", URLFor("/slide/", "intro"))
	require.Equal(t, "/decks/intro.html", URLFor("/decks", "intro"))
	require.Equal(t, "/slide/my%20talk.html", URLFor("/slide/", "my talk"))
}

func TestBuild(t *testing.T) {
	m, err := Build("/slide/", []Record{
		{Slug: "b", Title: "B", Description: "second", SourceFile: "b.md"},
		{Slug: "a", Title: "A", SourceFile: "a.md"},
	})
	require.NoError(t, err)
	require.Equal(t, []Entry{
		{ID: "b", Title: "B", Description: "second", File: "b.md", URL: "/slide/b.html"},
		{ID: "a", Title: "A", File: "a.md", URL: "/slide/a.html"},
	}, m.Presentations)
	require.Equal(t, []string{"b", "a"}, m.IDs())

	e, ok := m.Find("a")
	require.True(t, ok)
	require.Equal(t, "A", e.Title)
	_, ok = m.Find("zzz")
	require.False(t, ok)
}

func TestBuild_RejectsDuplicateIDs(t *testing.T) {
	_, err := Build("", []Record{
		{Slug: "deck", SourceFile: "deck.md"},
		{Slug: "deck", SourceFile: "deck.markdown"},
	})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestToJSON_EmptyManifest(t *testing.T) {
	m, err := Build("", nil)
	require.NoError(t, err)
	data, err := m.ToJSON()
	require.NoError(t, err)
	require.Equal(t, "{\n  \"presentations\": []\n}\n", string(data))

	data, err = (&Manifest{}).ToJSON()
	require.NoError(t, err)
	require.Equal(t, "{\n  \"presentations\": []\n}\n", string(data))
}

func TestToJSON_Format(t *testing.T) {
	m, err := Build("", []Record{{Slug: "intro", Title: "Intro to X", Description: "A short summary", SourceFile: "intro.md"}})
	require.NoError(t, err)
	data, err := m.ToJSON()
	require.NoError(t, err)
	require.Equal(t, `{
  "presentations": [
    {
      "id": "intro",
      "title": "Intro to X",
      "description": "A short summary",
      "file": "intro.md",
      "url": "/slide/intro.html"
    }
  ]
}
`, string(data))

	back, err := FromJSON(data)
	require.NoError(t, err)
	require.Equal(t, m, back)
	require.Equal(t, m.Digest(), back.Digest())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dist", "slides-manifest.json")
	s := NewFileStore(path)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first, err := Build("", []Record{{Slug: "a", SourceFile: "a.md"}, {Slug: "b", SourceFile: "b.md"}})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, first))

	second, err := Build("", []Record{{Slug: "b", SourceFile: "b.md"}})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, second))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, loaded.IDs(), "save replaces, never appends")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_PersistFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := NewFileStore(filepath.Join(blocker, "slides-manifest.json"))
	err := s.Save(context.Background(), &Manifest{})
	require.ErrorIs(t, err, ErrPersistFailed)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryManifest))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	_, err := NewFileStore(path).Load(context.Background())
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryManifest))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	m, err := Build("", []Record{{Slug: "a"}})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, m))

	m.Presentations[0].Title = "mutated"
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded.Presentations[0].Title)
	require.Equal(t, 1, s.Saves())

	s.SaveErr = errors.New("disk full")
	require.ErrorIs(t, s.Save(ctx, m), ErrPersistFailed)
}
