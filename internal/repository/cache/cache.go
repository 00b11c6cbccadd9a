// Package cache holds the disk tier of the content cache: raw tile bytes
// keyed by provider and quadkey.
package cache

import (
	"context"
	"time"
)

// TileCacheKey names one tile of one provider. QuadKey may be empty for
// the single zoom 0 tile.
type TileCacheKey struct {
	Provider string
	QuadKey  string
}

type TileCacheValue []byte

type Stats struct {
	Count int
	Bytes int64
}

// TileCache is a persistent tile store. Implementations are safe for
// concurrent use. Get reports a missing key as (nil, false, nil).
type TileCache interface {
	Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error)
	Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error
	// Keys lists the cached quadkeys of provider.
	Keys(ctx context.Context, provider string) ([]string, error)
	RemoveAll(ctx context.Context, provider string) error
	// PurgeOlderThan drops entries of provider stored before cutoff and
	// returns how many were dropped.
	PurgeOlderThan(ctx context.Context, provider string, cutoff time.Time) (int, error)
	Stats(ctx context.Context, provider string) (Stats, error)
	Close() error
}
