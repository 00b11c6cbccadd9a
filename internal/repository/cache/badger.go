package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
)

// header is the big-endian store time in unix nanoseconds that precedes
// every value.
const header = 8

type BadgerConfig struct {
	Path     string
	InMemory bool
}

// BadgerCache stores tiles in an embedded badger database.
type BadgerCache struct {
	db     *badger.DB
	logger logger.Logger
	now    func() time.Time
}

// badgerLogger adapts logger.Logger to badger.Logger.
type badgerLogger struct {
	logger logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func NewBadgerCache(cfg BadgerConfig, l logger.Logger) (*BadgerCache, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required for persistent cache")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{logger: l})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	l.Info("badger cache initialized", "path", cfg.Path, "in_memory", cfg.InMemory)

	return &BadgerCache{db: db, logger: l, now: time.Now}, nil
}

var _ TileCache = (*BadgerCache)(nil)

func providerPrefix(provider string) []byte {
	return []byte("tile/" + url.PathEscape(provider) + "/")
}

func (c *BadgerCache) keyFor(k TileCacheKey) []byte {
	return append(providerPrefix(k.Provider), k.QuadKey...)
}

func (c *BadgerCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	var value TileCacheValue
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.keyFor(k))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(raw) < header {
			return fmt.Errorf("corrupt badger entry %q", item.Key())
		}
		value = raw[header:]
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("badger get error: %w", err)
	}
	return value, true, nil
}

func (c *BadgerCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue) error {
	raw := make([]byte, header+len(v))
	binary.BigEndian.PutUint64(raw, uint64(c.now().UnixNano()))
	copy(raw[header:], v)

	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.keyFor(k), raw)
	}); err != nil {
		return fmt.Errorf("badger set error: %w", err)
	}
	return nil
}

// each visits the entries of provider with their store time and size.
func (c *BadgerCache) each(ctx context.Context, provider string, fn func(key []byte, stored time.Time, size int64)) error {
	prefix := providerPrefix(provider)
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var stored time.Time
			err := item.Value(func(val []byte) error {
				if len(val) >= header {
					stored = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
				}
				return nil
			})
			if err != nil {
				return err
			}
			fn(item.KeyCopy(nil), stored, max(item.ValueSize()-header, 0))
		}
		return nil
	})
}

func (c *BadgerCache) Keys(ctx context.Context, provider string) ([]string, error) {
	n := len(providerPrefix(provider))
	var keys []string
	err := c.each(ctx, provider, func(key []byte, _ time.Time, _ int64) {
		keys = append(keys, string(key[n:]))
	})
	return keys, err
}

func (c *BadgerCache) RemoveAll(_ context.Context, provider string) error {
	return c.db.DropPrefix(providerPrefix(provider))
}

func (c *BadgerCache) PurgeOlderThan(ctx context.Context, provider string, cutoff time.Time) (int, error) {
	var stale [][]byte
	err := c.each(ctx, provider, func(key []byte, stored time.Time, _ int64) {
		if stored.Before(cutoff) {
			stale = append(stale, key)
		}
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}

	if err := c.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		c.logger.Debug("badger value log gc skipped", "error", err)
	}
	return len(stale), nil
}

func (c *BadgerCache) Stats(ctx context.Context, provider string) (Stats, error) {
	var s Stats
	err := c.each(ctx, provider, func(_ []byte, _ time.Time, size int64) {
		s.Count++
		s.Bytes += size
	})
	return s, err
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
