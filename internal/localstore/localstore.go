// Package localstore is a directory-backed blob store with the same contract
// as the GCS store. References have the form file://<absolute path>.
package localstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const scheme = "file://"

type Store struct {
	dir string
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Store writes data as <uuid><ext>, keeping the extension of name. It never
// replaces an existing file.
func (s *Store) Store(_ context.Context, name string, data []byte) (string, error) {
	object := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	target, err := s.target(object)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create object %s: %w", object, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write object %s: %w", object, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", object, err)
	}
	return scheme + target, nil
}

// Put writes data to object, replacing any previous content. Readers see
// either the old or the new file, never a partial write.
func (s *Store) Put(_ context.Context, object, _ string, data []byte) (string, error) {
	target, err := s.target(object)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", object, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write object %s: %w", object, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", object, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("replace object %s: %w", object, err)
	}
	return scheme + target, nil
}

func (s *Store) target(object string) (string, error) {
	target := filepath.Join(s.dir, filepath.FromSlash(object))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	return target, nil
}

func (s *Store) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	p, ok := strings.CutPrefix(ref, scheme)
	if !ok {
		return nil, fmt.Errorf("not a file:// reference: %q", ref)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return f, nil
}

func (s *Store) Fetch(ctx context.Context, ref string) ([]byte, error) {
	r, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
