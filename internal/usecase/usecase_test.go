package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gg"
	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/jaennil/guide_helper/backend/imagery/internal/render"
	"github.com/jaennil/guide_helper/backend/imagery/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/imagery/internal/tilesource"
	"github.com/jaennil/guide_helper/backend/imagery/internal/webcache"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tilePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, pyramid.TileSize, pyramid.TileSize))
	for y := range pyramid.TileSize {
		for x := range pyramid.TileSize {
			img.Set(x, y, color.RGBA{G: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	status   *StatusUseCase
	layer    *LayerUseCase
	prefetch *PrefetchUseCase
	requests *atomic.Int64
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	data := tilePNG(t)
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	disk := cache.NewMapCache()
	factory := func(src *tilesource.Source) *webcache.Cache {
		return webcache.New(webcache.Config{
			Provider:    src.Identifier(),
			MemoryCount: 1000,
			MemoryBytes: 1 << 28,
			Timeout:     5 * time.Second,
		}, disk)
	}
	src, err := tilesource.New(tilesource.Config{Name: "Test", Identifier: "test", URL: server.URL + "/{z}/{x}/{y}.png"})
	require.NoError(t, err)

	l := logger.NewNoOp()
	status := NewStatusUseCase(l)
	layer := NewLayerUseCase(src, factory, render.NewCanvas(), status, config.Layer{}, time.Hour, l)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = layer.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		layer.Close()
	})

	return &fixture{
		status:   status,
		layer:    layer,
		prefetch: NewPrefetchUseCase(layer, 4, l),
		requests: &requests,
		server:   server,
	}
}

var centerView = View{Zoom: 2, Width: 512, Height: 512}

func (f *fixture) waitLoaded(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		tiles, err := f.layer.Tiles(context.Background())
		if err != nil {
			return false
		}
		loaded := 0
		for _, tile := range tiles {
			if tile.State == "loaded" {
				loaded++
			}
		}
		return loaded == n
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMapPoint(t *testing.T) {
	p := MapPoint(orb.Point{0, 0})
	assert.InDelta(t, 128, p.X, 1e-9)
	assert.InDelta(t, 128, p.Y, 1e-9)

	nw := MapPoint(orb.Point{-180, 85.0511287798066})
	assert.InDelta(t, 0, nw.X, 1e-6)
	assert.InDelta(t, 0, nw.Y, 1e-6)
}

func TestViewportForBound(t *testing.T) {
	vp := ViewportForBound(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{180, 85.0511287798066}}, 3)

	assert.InDelta(t, 3, vp.Zoom(), 1e-9)
	assert.InDelta(t, 1024, vp.Bounds.Width(), 1e-6)
	assert.InDelta(t, 1024, vp.Bounds.Height(), 1e-6)
	r := vp.MapRect()
	assert.InDelta(t, 128, r.Min.X, 1e-6)
	assert.InDelta(t, 0, r.Min.Y, 1e-6)
	assert.InDelta(t, 256, r.Max.X, 1e-6)
	assert.InDelta(t, 128, r.Max.Y, 1e-6)
}

func TestStatusProgress(t *testing.T) {
	uc := NewStatusUseCase(logger.NewNoOp())

	uc.Increment()
	uc.Increment()
	uc.Decrement()
	assert.Equal(t, 1, uc.InFlight())

	uc.Decrement()
	uc.Decrement()
	assert.Equal(t, 0, uc.InFlight(), "never negative")
}

func TestStatusErrors(t *testing.T) {
	uc := NewStatusUseCase(logger.NewNoOp())
	boom := errors.New("boom")

	uc.ReportError("Imagery", boom)
	uc.ReportError("Imagery", boom)
	uc.ReportError("Other", boom)

	errs := uc.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, 2, errs[0].Count, "repeats fold into the latest entry")
	assert.Equal(t, "Other", errs[1].Title)

	assert.True(t, uc.DismissError(errs[0].ID))
	assert.False(t, uc.DismissError(errs[0].ID))
	assert.Len(t, uc.Errors(), 1)

	uc.ClearErrors()
	assert.Empty(t, uc.Errors())
}

func TestStatusErrorsAreCapped(t *testing.T) {
	uc := NewStatusUseCase(logger.NewNoOp())

	for i := range maxReportedErrors + 10 {
		uc.ReportError("Imagery", fmt.Errorf("error %d", i))
	}

	errs := uc.Errors()
	require.Len(t, errs, maxReportedErrors)
	assert.Equal(t, "error 10", errs[0].Message)
}

func TestLayerLoadsView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.layer.SetView(ctx, centerView))
	f.waitLoaded(t, 4)

	keys, err := f.layer.TileKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2,1,1", "2,1,2", "2,2,1", "2,2,2"}, keys)

	stats, err := f.layer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.DiskCount)
	assert.Equal(t, 4, stats.MemoryCount)
	assert.Equal(t, 0, f.status.InFlight())

	snapshot, err := f.layer.Snapshot(ctx)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(snapshot))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)
}

func TestLayerWithoutViewport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.layer.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrNoViewport)

	_, err = f.prefetch.PrefetchCurrent(ctx, nil)
	assert.ErrorIs(t, err, ErrNoViewport)
}

func TestLayerPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.layer.SetView(ctx, centerView))
	f.waitLoaded(t, 4)

	require.NoError(t, f.layer.Purge(ctx))

	// the purge schedules a pass that loads the view again, from the network
	f.waitLoaded(t, 4)
	assert.Equal(t, int64(8), f.requests.Load())
}

func TestLayerDarkModeAndOffset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.layer.SetDarkMode(ctx, true))
	on, err := f.layer.DarkMode(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, f.layer.SetOffset(ctx, 4, -2))
	require.NoError(t, f.layer.SetHidden(ctx, false))
}

func TestLayerSetSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.layer.SetView(ctx, centerView))
	f.waitLoaded(t, 4)

	info, err := f.layer.SetSource(ctx, config.Source{
		URL:        f.server.URL + "/other/{z}/{x}/{y}.png",
		Identifier: "other",
		MaxZoom:    1,
	})
	require.NoError(t, err)

	assert.Equal(t, "other", info.Identifier)
	assert.Equal(t, 1, f.layer.Source().MaxZoom)
	f.waitLoaded(t, 4)
	keys, err := f.layer.TileKeys(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		assert.Regexp(t, `^1,`, k)
	}

	_, err = f.layer.SetSource(ctx, config.Source{Preset: "missing"})
	assert.ErrorIs(t, err, tilesource.ErrUnknownPreset)
}

func TestLayerSetSourceAfterCancel(t *testing.T) {
	f := newFixture(t)
	_, before := f.layer.current()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.layer.SetSource(ctx, config.Source{
		URL:        f.server.URL + "/other/{z}/{x}/{y}.png",
		Identifier: "other",
	})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	// the posted swap still lands and retires the previous cache
	assert.Eventually(t, func() bool {
		return f.layer.Source().Identifier == "other"
	}, time.Second, 10*time.Millisecond)
	_, after := f.layer.current()
	assert.Equal(t, "other", after.Provider())

	errCh := make(chan error, 1)
	before.Get("0000",
		func() (string, error) { return f.server.URL + "/4/0/0.png", nil },
		func(data []byte) (image.Image, error) { return png.Decode(bytes.NewReader(data)) },
		func(_ image.Image, err error) { errCh <- err },
	)
	select {
	case err := <-errCh:
		assert.Error(t, err, "closed cache still downloads")
	case <-time.After(5 * time.Second):
		t.Fatal("closed cache never answered")
	}
}

func TestPrefetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vp := pyramid.NewViewport(512, 512, gg.Pt(128, 128), 2, 0)

	var last atomic.Int64
	result, err := f.prefetch.Prefetch(ctx, vp, func(done, total int) {
		if int64(done) > last.Load() {
			last.Store(int64(done))
		}
	})
	require.NoError(t, err)

	// 2x2 at zoom 2, 4x4 at 3, 8x8 at 4
	assert.Equal(t, PrefetchResult{Requested: 84, Downloaded: 84}, result)
	assert.Equal(t, int64(84), last.Load())
	assert.Equal(t, int64(84), f.requests.Load())

	again, err := f.prefetch.Prefetch(ctx, vp, nil)
	require.NoError(t, err)
	assert.Equal(t, PrefetchResult{}, again, "everything is on disk already")
}

func TestPrefetchCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.prefetch.Prefetch(ctx, pyramid.NewViewport(512, 512, gg.Pt(128, 128), 2, 0), nil)

	assert.ErrorIs(t, err, context.Canceled)
}
