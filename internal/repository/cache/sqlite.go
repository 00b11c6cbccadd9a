package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteCache struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewSQLiteCache(path string, l logger.Logger) (*SQLiteCache, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &SQLiteCache{
		db:     db,
		logger: l,
		now:    time.Now,
	}

	err = c.runMigrations()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite cache: %w", err)
	}

	l.Info("sqlite cache initialized", "path", path)

	return c, nil
}

// gooseLogger routes migration output through the service logger.
type gooseLogger struct {
	logger logger.Logger
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: c.logger})

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.Up(c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

var _ TileCache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.logger.Debug("sqlite cache get", "provider", k.Provider, "quadkey", k.QuadKey)

	query := `SELECT tile_data
	FROM tile_cache
	WHERE provider = ? AND quad_key = ?`

	var tileData []byte
	err := c.db.QueryRowContext(ctx, query, k.Provider, k.QuadKey).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		c.logger.Error("sqlite cache get failed", "provider", k.Provider, "quadkey", k.QuadKey, "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	c.logger.Debug("sqlite cache set", "provider", k.Provider, "quadkey", k.QuadKey)

	query := `INSERT INTO tile_cache (provider, quad_key, tile_data, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(provider, quad_key) DO UPDATE SET tile_data = excluded.tile_data, updated_at = excluded.updated_at`

	_, err := c.db.ExecContext(ctx, query, k.Provider, k.QuadKey, []byte(v), c.now().UnixNano())
	if err != nil {
		c.logger.Error("sqlite cache set failed", "provider", k.Provider, "quadkey", k.QuadKey, "error", err)
		return err
	}

	return nil
}

func (c *SQLiteCache) Keys(ctx context.Context, provider string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT quad_key FROM tile_cache WHERE provider = ? ORDER BY quad_key`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (c *SQLiteCache) RemoveAll(ctx context.Context, provider string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM tile_cache WHERE provider = ?`, provider)
	return err
}

func (c *SQLiteCache) PurgeOlderThan(ctx context.Context, provider string, cutoff time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM tile_cache WHERE provider = ? AND updated_at < ?`, provider, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (c *SQLiteCache) Stats(ctx context.Context, provider string) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(tile_data)), 0) FROM tile_cache WHERE provider = ?`,
		provider,
	).Scan(&s.Count, &s.Bytes)
	return s, err
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
