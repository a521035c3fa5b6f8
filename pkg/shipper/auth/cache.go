package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MemoryCache keeps tokens in process memory.
type MemoryCache struct {
	tokens map[string]Token
	mu     sync.RWMutex
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]Token)}
}

// Get returns a copy of the cached token.
func (c *MemoryCache) Get(_ context.Context, key string) (*Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[key]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

// Put stores a copy of the token.
func (c *MemoryCache) Put(_ context.Context, key string, token *Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = *token
	return nil
}

// FileCache stores one JSON file per key in a directory.
type FileCache struct {
	dir string
}

// NewFileCache creates the directory if needed and returns a cache over it.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating token dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)
	return filepath.Join(c.dir, safe+".json")
}

// Get reads the token file for key.
func (c *FileCache) Get(_ context.Context, key string) (*Token, error) {
	data, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	return &tok, nil
}

// Put writes to a temp file and renames it over the previous one.
func (c *FileCache) Put(_ context.Context, key string, token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

var (
	_ TokenCache = (*MemoryCache)(nil)
	_ TokenCache = (*FileCache)(nil)
)
