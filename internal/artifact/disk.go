package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore persists artifacts under root/sessionID/path.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("disk store root is required")
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Put(_ context.Context, sessionID, path string, content []byte) error {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, full)
}

func (s *DiskStore) Get(_ context.Context, sessionID, path string) ([]byte, error) {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetURL returns a file:// URL for existing artifacts.
func (s *DiskStore) GetURL(_ context.Context, sessionID, path string) (string, error) {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (s *DiskStore) List(_ context.Context, sessionID string) ([]string, error) {
	sid, err := cleanSession(sessionID)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(s.root, sid)
	paths := make([]string, 0, 32)
	walkErr := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, walkErr
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *DiskStore) pathFor(sessionID, path string) (string, error) {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
