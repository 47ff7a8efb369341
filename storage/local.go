package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps blobs as files below a root directory. The ref is the
// slash-separated path relative to that root.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) path(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob ref %q", ref)
	}
	return filepath.Join(l.root, clean), nil
}

// Put writes to a temporary file and renames it into place once the
// content is synced, so a failed upload never leaves a partial blob.
func (l *Local) Put(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	full, err := l.path(name)
	if err != nil {
		return "", 0, err
	}
	if _, err := os.Stat(full); err == nil {
		return "", 0, fmt.Errorf("blob %s already exists", name)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", 0, fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmp := f.Name()
	fail := func(err error) (string, int64, error) {
		f.Close()
		os.Remove(tmp)
		return "", 0, err
	}

	n, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if err != nil {
		return fail(fmt.Errorf("failed to write blob: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync blob: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to move blob into place: %w", err)
	}
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(name))), n, nil
}

func (l *Local) Delete(_ context.Context, ref string) error {
	full, err := l.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}
	// Blobs live in a per-token directory; drop it once empty.
	if dir := filepath.Dir(full); dir != filepath.Clean(l.root) {
		_ = os.Remove(dir)
	}
	return nil
}

func (l *Local) URL(context.Context, string) (string, error) {
	return "", nil
}

func (l *Local) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	full, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", ref, err)
	}
	return f, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
