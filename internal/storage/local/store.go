// Package local implements the object store on the local filesystem,
// mirroring relative keys under two physical roots: one for structured
// metadata and one for media blobs.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config captures the two storage roots.
type Config struct {
	MetadataDir string `mapstructure:"metadata_dir"`
	MediaDir    string `mapstructure:"media_dir"`
}

// Store writes crawl output to the local filesystem. Repeated writes to
// the same key overwrite (last write wins), which is the intended
// idempotency mechanism under re-delivery.
type Store struct {
	metadataDir string
	mediaDir    string
}

// New creates both roots if needed.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.MetadataDir) == "" || strings.TrimSpace(cfg.MediaDir) == "" {
		return nil, fmt.Errorf("metadata and media directories are required")
	}
	for _, dir := range []string{cfg.MetadataDir, cfg.MediaDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create storage root %s: %w", dir, err)
		}
	}
	return &Store{metadataDir: cfg.MetadataDir, mediaDir: cfg.MediaDir}, nil
}

// WriteJSON serializes v under key below the metadata root.
func (s *Store) WriteJSON(_ context.Context, v any, key string) (string, error) {
	fullPath, err := s.resolve(s.metadataDir, key)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return fullPath, nil
}

// WriteFile copies the file at srcPath under key below the media root.
func (s *Store) WriteFile(_ context.Context, srcPath, key string) (string, error) {
	fullPath, err := s.resolve(s.mediaDir, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer src.Close()
	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy to %s: %w", key, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return fullPath, nil
}

// List returns the keys under prefix across both roots, slash-separated.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, root := range []string{s.metadataDir, s.mediaDir} {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ReadJSON loads the structured record stored under key into v.
func (s *Store) ReadJSON(key string, v any) error {
	fullPath, err := s.resolve(s.metadataDir, key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// resolve joins key below root and rejects traversal outside it.
func (s *Store) resolve(root, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	fullPath := filepath.Join(root, filepath.FromSlash(key))
	cleanRoot := filepath.Clean(root)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes storage root: %s", key)
	}
	return fullPath, nil
}
