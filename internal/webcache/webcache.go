// Package webcache implements the content cache behind the tile layer:
// decoded images in memory, raw bytes on disk, then the network.
package webcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/jaennil/guide_helper/backend/imagery/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var ErrNoURL = errors.New("tile has no url")

// StatusError is returned when the tile server answers with anything but
// 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d for %s", e.StatusCode, e.URL)
}

type Config struct {
	// Provider scopes disk entries, usually the source identifier.
	Provider    string
	MemoryBytes int64
	MemoryCount int
	Timeout     time.Duration
	UserAgent   string
	Referer     string
	// RateLimit is in requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

type Option func(*Cache)

func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) { c.client = client }
}

// Cache is a pyramid.ContentCache for one provider. It is safe for
// concurrent use.
type Cache struct {
	provider  string
	userAgent string
	referer   string
	logger    logger.Logger

	memory  *memoryTier
	disk    cache.TileCache
	client  *http.Client
	limiter *rate.Limiter
	group   singleflight.Group

	// generation changes on ResetMemory so fetches decoded with an old
	// filter never share a flight with new ones.
	genMu      sync.Mutex
	generation int

	ctx    context.Context
	cancel context.CancelFunc
}

var _ pyramid.ContentCache = (*Cache)(nil)

func New(cfg Config, disk cache.TileCache, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}
	c := &Cache{
		provider:  cfg.Provider,
		userAgent: cfg.UserAgent,
		referer:   cfg.Referer,
		logger:    logger.NewNoOp(),
		memory:    newMemoryTier(cfg.MemoryCount, cfg.MemoryBytes),
		disk:      disk,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("provider", cfg.Provider)
	return c
}

func (c *Cache) Provider() string {
	return c.provider
}

// Get returns the image for key straight away on a memory hit. Otherwise
// it returns nil and loads in the background. done is called exactly once
// in both cases.
func (c *Cache) Get(key string, url func() (string, error), decode pyramid.DecodeFunc, done func(image.Image, error)) image.Image {
	if img, ok := c.memory.get(key); ok {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		done(img, nil)
		return img
	}

	flight := strconv.Itoa(c.currentGeneration()) + "/" + key
	go func() {
		v, err, _ := c.group.Do(flight, func() (any, error) {
			return c.load(c.ctx, key, url, decode)
		})
		img, _ := v.(image.Image)
		done(img, err)
	}()
	return nil
}

func (c *Cache) currentGeneration() int {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.generation
}

func (c *Cache) load(ctx context.Context, key string, url func() (string, error), decode pyramid.DecodeFunc) (image.Image, error) {
	gen := c.currentGeneration()
	k := cache.TileCacheKey{Provider: c.provider, QuadKey: key}

	data, exists, err := c.disk.Get(ctx, k)
	if err != nil {
		metrics.DiskErrors.WithLabelValues("get").Inc()
		c.logger.Warn("disk cache read failed", "provider", c.provider, "quadkey", key, "error", err)
	}
	if exists {
		img, err := decode(data)
		switch {
		case err == nil:
			metrics.CacheHits.WithLabelValues("disk").Inc()
			c.remember(gen, key, img)
			return img, nil
		case errors.Is(err, pyramid.ErrNoImagery):
			return nil, err
		default:
			c.logger.Warn("discarding undecodable disk entry", "provider", c.provider, "quadkey", key, "error", err)
		}
	}

	metrics.CacheMisses.Inc()
	data, err = c.download(ctx, key, url)
	if err != nil {
		return nil, err
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	if err := c.disk.Set(ctx, k, data); err != nil {
		metrics.DiskErrors.WithLabelValues("set").Inc()
		c.logger.Warn("disk cache write failed", "provider", c.provider, "quadkey", key, "error", err)
	} else {
		metrics.CacheStores.Inc()
	}
	c.remember(gen, key, img)
	return img, nil
}

// remember adds img to the memory tier unless the tier was reset while it
// was loading.
func (c *Cache) remember(gen int, key string, img image.Image) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if gen != c.generation {
		return
	}
	c.memory.add(key, img)
}

func (c *Cache) download(ctx context.Context, key string, url func() (string, error)) (data []byte, err error) {
	u, err := url()
	if err != nil {
		return nil, fmt.Errorf("failed to build tile url: %w", err)
	}
	if u == "" {
		return nil, ErrNoURL
	}

	ctx, span := telemetry.StartSpan(ctx, "webcache.download",
		attribute.String("tile.provider", c.provider),
		attribute.String("tile.quadkey", key),
		attribute.String("url.full", u),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	metrics.UpstreamRequests.Inc()
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	data, err = io.ReadAll(resp.Body)
	metrics.UpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}

	c.logger.Debug("fetched tile", "provider", c.provider, "quadkey", key, "size", len(data))
	return data, nil
}

// ResetMemory drops every decoded image.
func (c *Cache) ResetMemory() {
	c.genMu.Lock()
	c.generation++
	c.genMu.Unlock()
	c.memory.clear()
}

// RemoveAll drops both tiers and idle upstream connections.
func (c *Cache) RemoveAll(ctx context.Context) error {
	c.ResetMemory()
	c.client.CloseIdleConnections()
	if err := c.disk.RemoveAll(ctx, c.provider); err != nil {
		return fmt.Errorf("failed to clear disk cache: %w", err)
	}
	return nil
}

// Keys lists the quadkeys stored on disk.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.disk.Keys(ctx, c.provider)
}

type Stats struct {
	DiskCount   int   `json:"disk_count"`
	DiskBytes   int64 `json:"disk_bytes"`
	MemoryCount int   `json:"memory_count"`
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	s, err := c.disk.Stats(ctx, c.provider)
	if err != nil {
		return Stats{}, err
	}
	return Stats{DiskCount: s.Count, DiskBytes: s.Bytes, MemoryCount: c.memory.len()}, nil
}

// PurgeOlderThan drops disk entries stored more than maxAge ago.
func (c *Cache) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := c.disk.PurgeOlderThan(ctx, c.provider, time.Now().Add(-maxAge))
	if err != nil {
		return n, fmt.Errorf("failed to purge disk cache: %w", err)
	}
	if n > 0 {
		c.logger.Info("purged expired tiles", "provider", c.provider, "count", n, "max_age", maxAge)
	}
	return n, nil
}

// Close cancels background loads. Their done callbacks still run, with
// the cancellation error.
func (c *Cache) Close() {
	c.cancel()
	c.client.CloseIdleConnections()
}
