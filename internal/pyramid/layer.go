package pyramid

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gg"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/metrics"
)

type nopProgress struct{}

func (nopProgress) Increment() {}
func (nopProgress) Decrement() {}

type nopReporter struct{}

func (nopReporter) ReportError(string, error) {}

type Option func(*Layer)

func WithLogger(l logger.Logger) Option {
	return func(layer *Layer) { layer.logger = l }
}

func WithSurface(s Surface) Option {
	return func(layer *Layer) { layer.surface = s }
}

func WithProgress(p Progress) Option {
	return func(layer *Layer) { layer.progress = p }
}

func WithErrorReporter(r ErrorReporter) Option {
	return func(layer *Layer) { layer.reporter = r }
}

func WithOffset(offset gg.Point) Option {
	return func(layer *Layer) { layer.offset = offset }
}

// WithDarkFilter sets the filter applied while dark mode is on.
func WithDarkFilter(f Filter) Option {
	return func(layer *Layer) { layer.darkFilter = f }
}

// Layer keeps the live tile set in sync with a viewport.
//
// All state belongs to one owner goroutine: the one running Run, or the
// caller of RunPending in tests and tools. Methods other than Run, Do and
// Post must be called on that goroutine, typically from inside Do.
type Layer struct {
	logger   logger.Logger
	mailbox  *mailbox
	guard    layoutGuard
	progress Progress
	reporter ErrorReporter
	surface  Surface

	source Source
	cache  ContentCache
	tiles  *TileSet

	viewport    Viewport
	hasViewport bool
	offset      gg.Point
	hidden      bool
	darkMode    bool
	darkFilter  Filter
	scheduled   bool
	passes      int
}

func NewLayer(src Source, cache ContentCache, opts ...Option) *Layer {
	l := &Layer{
		logger:   logger.NewNoOp(),
		mailbox:  newMailbox(),
		progress: nopProgress{},
		reporter: nopReporter{},
		source:   src,
		cache:    cache,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.tiles = NewTileSet(l.surface)
	return l
}

// Run executes posted work until ctx is done.
func (l *Layer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.mailbox.notify:
			l.mailbox.drain()
		}
	}
}

// Post schedules fn on the owner goroutine. Safe for concurrent use.
func (l *Layer) Post(fn func()) {
	l.mailbox.post(fn)
}

// Do runs fn on the owner goroutine and waits for it to return.
func (l *Layer) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.mailbox.post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPending runs everything posted so far on the calling goroutine.
func (l *Layer) RunPending() int {
	return l.mailbox.drain()
}

// SetNeedsLayout schedules a layout pass. Requests made while a pass is
// running collapse into a single follow-up pass.
func (l *Layer) SetNeedsLayout() {
	if !l.guard.request() || l.scheduled {
		return
	}
	l.scheduled = true
	l.mailbox.post(func() {
		l.scheduled = false
		l.Layout()
	})
}

// Layout runs one pass now: fetch visible tiles, evict, then place.
func (l *Layer) Layout() {
	l.guard.enter()
	l.layout()
	if l.guard.exit() {
		l.SetNeedsLayout()
	}
}

func (l *Layer) layout() {
	l.passes++
	metrics.LayoutPasses.Inc()
	if l.hidden || !l.hasViewport || l.source == nil || l.cache == nil {
		return
	}

	r, err := VisibleRange(l.viewport, l.source)
	if err != nil {
		l.logger.Debug("skipping layout pass", "error", err)
		return
	}

	for _, a := range r.Addresses() {
		l.progress.Increment()
		metrics.InFlight.Inc()
		l.request(a, l.requestDone)
	}

	if n := PruneOffscreen(l.tiles, l.viewport); n > 0 {
		metrics.Evictions.WithLabelValues("offscreen").Add(float64(n))
	}
	if n := PruneCovered(l.tiles, r.Zoom); n > 0 {
		metrics.Evictions.WithLabelValues("covered").Add(float64(n))
	}

	PlaceAll(l.tiles, l.viewport, l.offset)
	metrics.LiveTiles.Set(float64(l.tiles.Len()))
}

func (l *Layer) requestDone(err error) {
	metrics.InFlight.Dec()
	l.progress.Decrement()
	if err == nil {
		return
	}
	metrics.FetchFailures.Inc()
	title := l.source.Name()
	var fe *FetchError
	if errors.As(err, &fe) {
		title = fe.Source
	}
	l.logger.Warn("tile fetch failed", "source", title, "error", err)
	l.reporter.ReportError(title, err)
}

// Passes counts layout passes run so far.
func (l *Layer) Passes() int {
	return l.passes
}

func (l *Layer) SetViewport(v Viewport) {
	l.viewport = v
	l.hasViewport = true
	l.SetNeedsLayout()
}

func (l *Layer) Viewport() (Viewport, bool) {
	return l.viewport, l.hasViewport
}

// ZoomLevel is the integral zoom tiles are requested at.
func (l *Layer) ZoomLevel() int {
	if l.source == nil {
		return 1
	}
	return ZoomLevel(l.viewport.Zoom(), l.source.RoundZoomUp(), l.source.MaxZoom())
}

// SetSource switches provider. The live set is dropped and cache, built
// for the new provider, replaces the old one.
func (l *Layer) SetSource(src Source, cache ContentCache) {
	if src == l.source && cache == l.cache {
		return
	}
	l.tiles.Clear()
	l.source = src
	l.cache = cache
	l.logger.Info("tile source changed", "source", src.Name(), "identifier", src.Identifier())
	l.SetNeedsLayout()
}

func (l *Layer) Source() Source {
	return l.source
}

func (l *Layer) Cache() ContentCache {
	return l.cache
}

// SetDarkMode toggles the dark filter. Cached images were decoded with the
// old setting, so the memory tier and live set are dropped.
func (l *Layer) SetDarkMode(on bool) {
	if on == l.darkMode {
		return
	}
	l.darkMode = on
	if l.cache != nil {
		l.cache.ResetMemory()
	}
	l.tiles.Clear()
	l.SetNeedsLayout()
}

func (l *Layer) DarkMode() bool {
	return l.darkMode
}

func (l *Layer) SetOffset(offset gg.Point) {
	l.offset = offset
	l.SetNeedsLayout()
}

func (l *Layer) Offset() gg.Point {
	return l.offset
}

func (l *Layer) SetHidden(hidden bool) {
	wasHidden := l.hidden
	l.hidden = hidden
	if wasHidden && !hidden {
		l.SetNeedsLayout()
	}
}

// PurgeAll drops every live tile and every cached image of the source.
func (l *Layer) PurgeAll(ctx context.Context) error {
	l.tiles.Clear()
	metrics.LiveTiles.Set(0)
	l.SetNeedsLayout()
	if l.cache == nil {
		return nil
	}
	if err := l.cache.RemoveAll(ctx); err != nil {
		return fmt.Errorf("failed to purge content cache: %w", err)
	}
	l.logger.Info("tile cache purged", "source", l.source.Name())
	return nil
}

// TileKeys lists the live tile keys in paint order.
func (l *Layer) TileKeys() []string {
	return l.tiles.Keys()
}

// Tiles lists the live tiles in paint order.
func (l *Layer) Tiles() []*Tile {
	return l.tiles.Tiles()
}

func (l *Layer) decoder() DecodeFunc {
	var filter Filter
	if l.darkMode {
		filter = l.darkFilter
	}
	return NewDecoder(l.source, filter)
}

// Prefetcher returns a bulk downloader bound to the current source.
func (l *Layer) Prefetcher() *Prefetcher {
	return NewPrefetcher(l.source, l.cache, l.decoder())
}
