// Package local implements a local filesystem blob store.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/securitytxt-crawler/internal/crawler"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the output directory; one file per domain is written directly under it.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes fetched bodies to the local filesystem.
type BlobStore struct {
	baseDir string
}

// Create makes the output directory and returns a store rooted at it. The
// directory must not exist yet; its parent must.
func Create(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.Mkdir(cfg.BaseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// Dir returns the directory the store writes into.
func (s *BlobStore) Dir() string {
	return s.baseDir
}

// PutObject writes data verbatim to BaseDir/name, truncating any existing file,
// and returns a file:// URI. Failures are reported as *crawler.PersistError.
func (s *BlobStore) PutObject(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &crawler.PersistError{Domain: name, Err: fmt.Errorf("context canceled: %w", err)}
	}
	fullPath, err := s.objectPath(name)
	if err != nil {
		return "", &crawler.PersistError{Domain: name, Err: err}
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", &crawler.PersistError{Domain: name, Err: fmt.Errorf("write file: %w", err)}
	}
	return "file://" + fullPath, nil
}

// objectPath resolves name to a file directly inside the base directory.
func (s *BlobStore) objectPath(name string) (string, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return "", errors.New("name is required")
	case name == "." || name == "..":
		return "", fmt.Errorf("invalid file name %q", name)
	case strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator):
		return "", fmt.Errorf("file name %q contains a path separator", name)
	}

	fullPath := filepath.Join(s.baseDir, name)
	cleanBaseDir := filepath.Clean(s.baseDir)
	if filepath.Dir(fullPath) != cleanBaseDir {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}
