// Package store persists run output: a file-system key-value store for
// checkpoint artifacts and append-only datasets for extracted rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: key not found")

var validKey = regexp.MustCompile(`^[\w.-]+$`)

// FileStore is a key-value store backed by one directory. Each key is one
// file; writes replace the previous value atomically.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store root.
func (fs *FileStore) Dir() string { return fs.dir }

// SetValue writes value under key. contentType is implied by the key's
// extension on read and is only checked for presence here.
func (fs *FileStore) SetValue(ctx context.Context, key string, value []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	if contentType == "" {
		return fmt.Errorf("store: empty content type for %q", key)
	}

	tmp, err := os.CreateTemp(fs.dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", key, err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(fs.dir, key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit %q: %w", key, err)
	}
	return nil
}

// GetValue returns the value stored under key and its content type.
func (fs *FileStore) GetValue(key string) ([]byte, string, error) {
	if err := checkKey(key); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filepath.Join(fs.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %q: %w", key, err)
	}
	return data, ContentType(key), nil
}

// Keys lists stored keys in lexical order.
func (fs *FileStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", fs.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name[0] == '.' {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// ContentType guesses the content type of key from its extension.
func ContentType(key string) string {
	switch filepath.Ext(key) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func checkKey(key string) error {
	if !validKey.MatchString(key) || key == "." || key == ".." || key[0] == '.' {
		return fmt.Errorf("store: invalid key %q", key)
	}
	return nil
}
