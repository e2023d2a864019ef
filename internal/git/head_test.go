package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestRevisionFromSubdirectory(t *testing.T) {
	repoPath := t.TempDir()
	repo, err := git.PlainInit(repoPath, false)
	if err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}

	slides := filepath.Join(repoPath, "slides")
	if mkdirErr := os.MkdirAll(slides, 0o750); mkdirErr != nil {
		t.Fatalf("Failed to create slides dir: %v", mkdirErr)
	}
	if writeErr := os.WriteFile(filepath.Join(slides, "intro.md"), []byte("# Intro"), 0o600); writeErr != nil {
		t.Fatalf("Failed to write file: %v", writeErr)
	}

	// Empty repository has no HEAD yet
	rev, err := Revision(slides)
	if err != nil || rev != "" {
		t.Fatalf("expected empty revision before first commit, got %q (%v)", rev, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	if _, addErr := w.Add("."); addErr != nil {
		t.Fatalf("Failed to add files: %v", addErr)
	}
	commit, err := w.Commit("Initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	rev, err = Revision(slides)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	if rev != commit.String() {
		t.Errorf("expected %s, got %s", commit, rev)
	}
	if short := ShortHash(rev); short != commit.String()[:7] {
		t.Errorf("expected short revision %s, got %s", commit.String()[:7], short)
	}
}

func TestShortHash(t *testing.T) {
	for in, want := range map[string]string{
		"":                 "",
		"abc":              "abc",
		"0123456789abcdef": "0123456",
	} {
		if got := ShortHash(in); got != want {
			t.Errorf("ShortHash(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRevisionOutsideRepository(t *testing.T) {
	rev, err := Revision(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != "" {
		t.Errorf("expected empty revision, got %q", rev)
	}
}
