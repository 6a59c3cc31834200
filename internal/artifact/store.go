// Package artifact persists generated deck files (manifest, HTML, previews,
// assets, per-section snapshots) keyed by session and relative path.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Store defines operations for persisting session artifacts.
type Store interface {
	Put(ctx context.Context, sessionID, path string, content []byte) error
	Get(ctx context.Context, sessionID, path string) ([]byte, error)
	// GetURL returns a fetchable URL, or "" when the backend has none.
	GetURL(ctx context.Context, sessionID, path string) (string, error)
	List(ctx context.Context, sessionID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

func cleanSession(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	if strings.Contains(sessionID, "..") || strings.ContainsAny(sessionID, `/\`) {
		return "", fmt.Errorf("invalid session_id: %s", sessionID)
	}
	return sessionID, nil
}

func cleanPath(path string) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(filepath.ToSlash(path)), "/")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid path: %s", path)
		}
	}
	return path, nil
}

// objectKey validates both parts and joins them as session/path.
func objectKey(sessionID, path string) (string, error) {
	s, err := cleanSession(sessionID)
	if err != nil {
		return "", err
	}
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return s + "/" + p, nil
}

// ContentType guesses a MIME type from the artifact's extension.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	case ".html":
		return "text/html; charset=utf-8"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}
