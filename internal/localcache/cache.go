// Package localcache keeps whole JSON values under fixed keys on the local host.
package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

const (
	KeyUsers        = "users"
	KeyAppointments = "appointments"
	KeyDoctors      = "doctors"
	KeySettings     = "settings"
	KeySessions     = "sessions"
	KeyPermissions  = "notify_permissions"
	KeyInbox        = "notify_inbox"
)

var ErrBadKey = errors.New("localcache: bad key")

// Cache reads and writes whole values. Load reports false when the key is absent.
type Cache interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Store(ctx context.Context, key string, v any) error
	Remove(ctx context.Context, key string) error
}

var keyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// FileCache stores one JSON file per key in a directory.
type FileCache struct {
	mu  sync.Mutex
	dir string
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localcache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key string) (string, error) {
	if !keyRe.MatchString(key) {
		return "", ErrBadKey
	}
	return filepath.Join(c.dir, key+".json"), nil
}

func (c *FileCache) Load(_ context.Context, key string, v any) (bool, error) {
	p, err := c.path(key)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	b, err := os.ReadFile(p)
	c.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("localcache %s: %w", key, err)
	}
	return true, nil
}

// Store writes to a temp file and renames it over the old value.
func (c *FileCache) Store(_ context.Context, key string, v any) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("localcache %s: %w", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (c *FileCache) Remove(_ context.Context, key string) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
