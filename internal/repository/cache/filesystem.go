package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// keyPrefix keeps the zoom 0 file name non-empty.
	keyPrefix = "q"
	// providerDirPrefix keeps "", "." and ".." from naming the root or its parent.
	providerDirPrefix = "p-"
)

// FilesystemCache stores one file per tile under a directory per provider.
type FilesystemCache struct {
	root string
}

func NewFilesystemCache(root string) (*FilesystemCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", root, err)
	}
	return &FilesystemCache{root: root}, nil
}

var _ TileCache = (*FilesystemCache)(nil)

func (c *FilesystemCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	content, err := os.ReadFile(c.keyToPath(k))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return content, true, nil
}

func (c *FilesystemCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue) error {
	dir := c.providerDir(k.Provider)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// write then rename so readers never see a partial tile
	tmp, err := os.CreateTemp(dir, ".tile-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.keyToPath(k))
}

func (c *FilesystemCache) Keys(ctx context.Context, provider string) ([]string, error) {
	var keys []string
	err := c.walk(ctx, provider, func(name string, _ fs.FileInfo) error {
		keys = append(keys, strings.TrimPrefix(name, keyPrefix))
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

func (c *FilesystemCache) RemoveAll(_ context.Context, provider string) error {
	return os.RemoveAll(c.providerDir(provider))
}

func (c *FilesystemCache) PurgeOlderThan(ctx context.Context, provider string, cutoff time.Time) (int, error) {
	removed := 0
	dir := c.providerDir(provider)
	err := c.walk(ctx, provider, func(name string, info fs.FileInfo) error {
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *FilesystemCache) Stats(ctx context.Context, provider string) (Stats, error) {
	var s Stats
	err := c.walk(ctx, provider, func(_ string, info fs.FileInfo) error {
		s.Count++
		s.Bytes += info.Size()
		return nil
	})
	return s, err
}

func (c *FilesystemCache) Close() error {
	return nil
}

// walk visits the tile files of provider. A missing directory is empty.
func (c *FilesystemCache) walk(ctx context.Context, provider string, fn func(name string, info fs.FileInfo) error) error {
	entries, err := os.ReadDir(c.providerDir(provider))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !strings.HasPrefix(e.Name(), keyPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if err := fn(e.Name(), info); err != nil {
			return err
		}
	}
	return nil
}

func (c *FilesystemCache) providerDir(provider string) string {
	return filepath.Join(c.root, providerDirPrefix+url.PathEscape(provider))
}

func (c *FilesystemCache) keyToPath(k TileCacheKey) string {
	return filepath.Join(c.providerDir(k.Provider), keyPrefix+k.QuadKey)
}
