package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gg"
	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/jaennil/guide_helper/backend/imagery/internal/render"
	"github.com/jaennil/guide_helper/backend/imagery/internal/tilesource"
	"github.com/jaennil/guide_helper/backend/imagery/internal/webcache"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/paulmach/orb"
)

var ErrNoViewport = errors.New("no viewport set")

// CacheFactory builds the content cache for a provider.
type CacheFactory func(src *tilesource.Source) *webcache.Cache

// View is a map view in geographic terms.
type View struct {
	Lon      float64
	Lat      float64
	Zoom     float64
	Rotation float64
	Tilt     float64
	Width    float64
	Height   float64
}

func (v View) Viewport() pyramid.Viewport {
	vp := pyramid.NewViewport(v.Width, v.Height, MapPoint(orb.Point{v.Lon, v.Lat}), v.Zoom, v.Rotation)
	vp.BirdsEyeRotation = v.Tilt
	return vp
}

type SourceInfo struct {
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	Template    string `json:"template"`
	MaxZoom     int    `json:"max_zoom"`
	RoundZoomUp bool   `json:"round_zoom_up"`
	WMS         bool   `json:"wms"`
}

func sourceInfo(src *tilesource.Source) SourceInfo {
	return SourceInfo{
		Name:        src.Name(),
		Identifier:  src.Identifier(),
		Template:    src.Template(),
		MaxZoom:     src.MaxZoom(),
		RoundZoomUp: src.RoundZoomUp(),
		WMS:         src.IsWMS(),
	}
}

type TileInfo struct {
	Key         string  `json:"key"`
	QuadKey     string  `json:"quad_key"`
	State       string  `json:"state"`
	Visible     bool    `json:"visible"`
	ContentFrom string  `json:"content_from,omitempty"`
	ZIndex      float64 `json:"z_index"`
}

// LayerUseCase is the thread-safe face of the tile layer. Every call is
// forwarded to the layer goroutine started by Run.
type LayerUseCase struct {
	layer    *pyramid.Layer
	canvas   *render.Canvas
	newCache CacheFactory
	maxAge   time.Duration
	logger   logger.Logger

	mu     sync.Mutex
	source *tilesource.Source
	cache  *webcache.Cache
}

func NewLayerUseCase(
	src *tilesource.Source,
	newCache CacheFactory,
	canvas *render.Canvas,
	status *StatusUseCase,
	cfg config.Layer,
	maxAge time.Duration,
	l logger.Logger,
) *LayerUseCase {
	c := newCache(src)
	layer := pyramid.NewLayer(src, c,
		pyramid.WithLogger(l),
		pyramid.WithSurface(canvas),
		pyramid.WithProgress(status),
		pyramid.WithErrorReporter(status),
		pyramid.WithOffset(gg.Pt(cfg.OffsetX, cfg.OffsetY)),
		pyramid.WithDarkFilter(render.Invert),
	)
	if cfg.DarkMode {
		layer.SetDarkMode(true)
	}
	return &LayerUseCase{
		layer:    layer,
		canvas:   canvas,
		newCache: newCache,
		maxAge:   maxAge,
		logger:   l,
		source:   src,
		cache:    c,
	}
}

// Run serves the layer until ctx is done.
func (uc *LayerUseCase) Run(ctx context.Context) error {
	return uc.layer.Run(ctx)
}

func (uc *LayerUseCase) current() (*tilesource.Source, *webcache.Cache) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.source, uc.cache
}

func (uc *LayerUseCase) Source() SourceInfo {
	src, _ := uc.current()
	return sourceInfo(src)
}

func (uc *LayerUseCase) SetView(ctx context.Context, v View) error {
	vp := v.Viewport()
	uc.logger.Debug("viewport changed", "lon", v.Lon, "lat", v.Lat, "zoom", v.Zoom, "rotation", v.Rotation)
	return uc.layer.Do(ctx, func() { uc.layer.SetViewport(vp) })
}

func (uc *LayerUseCase) SetViewport(ctx context.Context, vp pyramid.Viewport) error {
	return uc.layer.Do(ctx, func() { uc.layer.SetViewport(vp) })
}

// Viewport returns the current viewport, or ErrNoViewport.
func (uc *LayerUseCase) Viewport(ctx context.Context) (pyramid.Viewport, error) {
	var (
		vp pyramid.Viewport
		ok bool
	)
	if err := uc.layer.Do(ctx, func() { vp, ok = uc.layer.Viewport() }); err != nil {
		return pyramid.Viewport{}, err
	}
	if !ok {
		return pyramid.Viewport{}, ErrNoViewport
	}
	return vp, nil
}

func (uc *LayerUseCase) TileKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := uc.layer.Do(ctx, func() { keys = uc.layer.TileKeys() })
	return keys, err
}

func (uc *LayerUseCase) Tiles(ctx context.Context) ([]TileInfo, error) {
	var out []TileInfo
	err := uc.layer.Do(ctx, func() {
		for _, t := range uc.layer.Tiles() {
			info := TileInfo{
				Key:     t.Key(),
				QuadKey: t.Address.QuadKey(),
				State:   t.State.String(),
				Visible: t.Visible,
				ZIndex:  t.ZIndex(),
			}
			if t.Image != nil {
				info.ContentFrom = t.ContentFrom.Key()
			}
			out = append(out, info)
		}
	})
	return out, err
}

// Purge drops the live set and every cached tile of the current source.
func (uc *LayerUseCase) Purge(ctx context.Context) error {
	var purgeErr error
	if err := uc.layer.Do(ctx, func() { purgeErr = uc.layer.PurgeAll(ctx) }); err != nil {
		return err
	}
	return purgeErr
}

func (uc *LayerUseCase) SetDarkMode(ctx context.Context, on bool) error {
	return uc.layer.Do(ctx, func() { uc.layer.SetDarkMode(on) })
}

func (uc *LayerUseCase) DarkMode(ctx context.Context) (bool, error) {
	var on bool
	err := uc.layer.Do(ctx, func() { on = uc.layer.DarkMode() })
	return on, err
}

func (uc *LayerUseCase) SetOffset(ctx context.Context, x, y float64) error {
	return uc.layer.Do(ctx, func() { uc.layer.SetOffset(gg.Pt(x, y)) })
}

func (uc *LayerUseCase) SetHidden(ctx context.Context, hidden bool) error {
	return uc.layer.Do(ctx, func() { uc.layer.SetHidden(hidden) })
}

// SetSource installs a new provider with its own content cache. The old
// cache is closed and expired entries of the new one are purged in the
// background.
func (uc *LayerUseCase) SetSource(ctx context.Context, cfg config.Source) (SourceInfo, error) {
	src, err := tilesource.FromConfig(cfg)
	if err != nil {
		return SourceInfo{}, err
	}
	c := uc.newCache(src)
	// the swap runs even when ctx ends first, so it owns both caches
	if err := uc.layer.Do(ctx, func() {
		uc.layer.SetSource(src, c)
		uc.mu.Lock()
		old := uc.cache
		uc.source, uc.cache = src, c
		uc.mu.Unlock()
		old.Close()
		go uc.PurgeExpired(context.Background())
	}); err != nil {
		return SourceInfo{}, err
	}
	return sourceInfo(src), nil
}

// PurgeExpired drops disk entries of the current source older than the
// configured max age.
func (uc *LayerUseCase) PurgeExpired(ctx context.Context) (int, error) {
	_, c := uc.current()
	n, err := c.PurgeOlderThan(ctx, uc.maxAge)
	if err != nil {
		uc.logger.Error("failed to purge expired tiles", "provider", c.Provider(), "error", err)
	}
	return n, err
}

func (uc *LayerUseCase) Stats(ctx context.Context) (webcache.Stats, error) {
	_, c := uc.current()
	s, err := c.Stats(ctx)
	if err != nil {
		return webcache.Stats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return s, nil
}

// Snapshot renders the placed tiles at the viewport's screen size.
func (uc *LayerUseCase) Snapshot(ctx context.Context) ([]byte, error) {
	var (
		data    []byte
		drawErr error
	)
	err := uc.layer.Do(ctx, func() {
		vp, ok := uc.layer.Viewport()
		if !ok {
			drawErr = ErrNoViewport
			return
		}
		data, drawErr = uc.canvas.Snapshot(int(vp.Bounds.Width()), int(vp.Bounds.Height()))
	})
	if err != nil {
		return nil, err
	}
	return data, drawErr
}

// prefetcher captures everything a bulk download needs from the layer.
func (uc *LayerUseCase) prefetcher(ctx context.Context) (*pyramid.Prefetcher, pyramid.Source, *webcache.Cache, error) {
	var (
		p   *pyramid.Prefetcher
		src pyramid.Source
		c   *webcache.Cache
	)
	if err := uc.layer.Do(ctx, func() {
		p = uc.layer.Prefetcher()
		src = uc.layer.Source()
		_, c = uc.current()
	}); err != nil {
		return nil, nil, nil, err
	}
	return p, src, c, nil
}

func (uc *LayerUseCase) Close() {
	_, c := uc.current()
	c.Close()
}
