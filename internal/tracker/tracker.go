// Package tracker embeds the navigation tracker script into rendered artifacts.
package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// ErrInjectionFailed reports an artifact the tracker could not be embedded into.
var ErrInjectionFailed = errors.New("tracker injection failed")

// BodyClose is the marker the script is spliced in front of. Matching is
// case-sensitive.
const BodyClose = "</body>"

// Inject returns content with script wrapped in a script element placed
// immediately before the first closing body marker. All other bytes are
// preserved.
func Inject(content, script []byte) ([]byte, error) {
	idx := bytes.Index(content, []byte(BodyClose))
	if idx < 0 {
		return nil, ferrors.WrapError(fmt.Errorf("%w: no %s marker", ErrInjectionFailed, BodyClose),
			ferrors.CategoryInjection, "artifact has no closing body marker").
			Build()
	}

	const open, closing = "<script>", "</script>"
	out := make([]byte, 0, len(content)+len(open)+len(script)+len(closing))
	out = append(out, content[:idx]...)
	out = append(out, open...)
	out = append(out, script...)
	out = append(out, closing...)
	out = append(out, content[idx:]...)
	return out, nil
}

// InjectFile reads the converter output at staged, injects script and
// publishes the result at final via an atomic rename. The staged file is
// removed on success. On failure final is left untouched.
func InjectFile(staged, final string, script []byte) error {
	// #nosec G304 -- staged path is produced by the build pipeline
	content, err := os.ReadFile(staged)
	if err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrInjectionFailed, err), ferrors.CategoryInjection,
			"failed to read rendered artifact").
			WithContext("path", staged).
			Build()
	}

	injected, err := Inject(content, script)
	if err != nil {
		if ce, ok := ferrors.AsClassified(err); ok {
			return ce.WithContext("path", staged)
		}
		return err
	}

	if err := WriteAtomic(final, injected); err != nil {
		return err
	}
	_ = os.Remove(staged)
	return nil
}

// WriteAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partially written artifact.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create artifact directory").
			WithContext("path", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create temp artifact").
			WithContext("path", path).
			Build()
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write temp artifact").
			WithContext("path", tmpName).
			Build()
	}
	if err := tmp.Close(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to close temp artifact").
			WithContext("path", tmpName).
			Build()
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to set artifact permissions").
			WithContext("path", tmpName).
			Build()
	}
	if err := os.Rename(tmpName, path); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to publish artifact").
			WithContext("path", path).
			Build()
	}
	return nil
}
