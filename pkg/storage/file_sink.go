package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSink stores blobs as files under a base directory.
type FileSink struct {
	basePath string
}

// NewFileSink creates the base directory if missing.
func NewFileSink(basePath string) (*FileSink, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileSink{basePath: basePath}, nil
}

// Load reads the blob stored under key.
func (f *FileSink) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.basePath, safeFilename(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Save replaces the blob under key. The write goes to a temp file that is
// renamed into place, so readers never see a partial snapshot.
func (f *FileSink) Save(_ context.Context, key string, data []byte) error {
	target := filepath.Join(f.basePath, safeFilename(key))
	tmp, err := os.CreateTemp(f.basePath, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Delete removes the blob under key. Missing blobs are not an error.
func (f *FileSink) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(f.basePath, safeFilename(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return "snapshot"
	}
	return name
}
