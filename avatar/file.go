package avatar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage writes avatars into a directory served at URLPrefix.
type FileStorage struct {
	dir       string
	urlPrefix string
}

// NewFileStorage creates dir if needed. urlPrefix is the path the
// directory is served under, "/avatars" by default.
func NewFileStorage(dir, urlPrefix string) (*FileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("avatar directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar directory: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/avatars"
	}
	return &FileStorage{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (f *FileStorage) Dir() string { return f.dir }

// URLPrefix is the route prefix the directory should be mounted on.
func (f *FileStorage) URLPrefix() string { return f.urlPrefix }

// Put writes through a temporary file so readers never see a partial image.
func (f *FileStorage) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid avatar name %q", name)
	}

	tmp, err := os.CreateTemp(f.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, name)); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return f.urlPrefix + "/" + name, nil
}
