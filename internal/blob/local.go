// Package blob stores uploaded attachments and hands back the URL they are
// served from.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoExtension = errors.New("file must have an extension")
	ErrInvalidName = errors.New("invalid filename")
	ErrTooLarge    = errors.New("file too large")
)

// Store persists a blob and returns the URL it is reachable at.
type Store interface {
	Store(ctx context.Context, filename string, r io.Reader) (string, error)
}

// LocalStore writes blobs into a directory served under BaseURL.
type LocalStore struct {
	dir     string
	baseURL string
	maxSize int64
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string, maxSize int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: maxSize,
	}, nil
}

// MaxSize is the largest blob accepted; zero means unlimited.
func (s *LocalStore) MaxSize() int64 {
	return s.maxSize
}

// Store copies r to a fresh file named after a random id plus the extension
// of filename. The original name is never used on disk.
func (s *LocalStore) Store(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		return "", ErrNoExtension
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	dest := filepath.Join(s.dir, name)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(dest)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// Path resolves a served name back to its file. Names containing path
// separators are rejected.
func (s *LocalStore) Path(name string) (string, error) {
	if name == "" || path.Base(name) != name || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}
