package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// Sentinel errors.
var (
	ErrNotFound      = errors.New("manifest not found")
	ErrPersistFailed = errors.New("manifest persist failed")
)

// Store is the access point for the catalog. Every component that reads or
// writes the manifest goes through a Store.
type Store interface {
	Load(ctx context.Context) (*Manifest, error)
	Save(ctx context.Context, m *Manifest) error
}

// FileStore persists the manifest as a JSON file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads and decodes the manifest file.
func (s *FileStore) Load(_ context.Context) (*Manifest, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.WrapError(fmt.Errorf("%w: %w", ErrNotFound, err), ferrors.CategoryNotFound,
				"manifest file not found").
				WithContext("path", s.Path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read manifest").
			WithContext("path", s.Path).
			Build()
	}
	m, err := FromJSON(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryManifest, "manifest file is corrupt").
			WithContext("path", s.Path).
			Build()
	}
	return m, nil
}

// Save replaces the manifest file atomically (temp file + rename).
func (s *FileStore) Save(_ context.Context, m *Manifest) error {
	data, err := m.ToJSON()
	if err != nil {
		return persistError(err, s.Path)
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return persistError(err, s.Path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return persistError(err, s.Path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return persistError(err, s.Path)
	}
	if err := tmp.Close(); err != nil {
		return persistError(err, s.Path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return persistError(err, s.Path)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return persistError(err, s.Path)
	}
	return nil
}

func persistError(err error, path string) error {
	return ferrors.WrapError(fmt.Errorf("%w: %w", ErrPersistFailed, err), ferrors.CategoryManifest,
		"failed to persist manifest").
		WithContext("path", path).
		Build()
}

// MemoryStore keeps the manifest in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	m     *Manifest
	saves int
	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored manifest.
func (s *MemoryStore) Load(_ context.Context) (*Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.m == nil {
		return nil, ferrors.WrapError(ErrNotFound, ferrors.CategoryNotFound, "manifest not saved yet").Build()
	}
	return clone(s.m), nil
}

// Save stores a copy of m.
func (s *MemoryStore) Save(_ context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return persistError(s.SaveErr, "memory")
	}
	s.m = clone(m)
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func clone(m *Manifest) *Manifest {
	out := &Manifest{Presentations: make([]Entry, len(m.Presentations))}
	copy(out.Presentations, m.Presentations)
	return out
}
