package pyramid

import (
	"math"
	"testing"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoomLevel(t *testing.T) {
	tests := []struct {
		zoom    float64
		roundUp bool
		maxZoom int
		want    int
	}{
		{10.4, false, 21, 10},
		{10.4, true, 21, 11},
		{10.0, true, 21, 10},
		{0.3, false, 21, 1},
		{-4, true, 21, 1},
		{25, false, 19, 19},
		{18.2, true, 18, 18},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoomLevel(tt.zoom, tt.roundUp, tt.maxZoom), "ZoomLevel(%v, %v, %v)", tt.zoom, tt.roundUp, tt.maxZoom)
	}
}

func TestVisibleRangeCoversScreen(t *testing.T) {
	// 512px at scale 4 shows map [64, 192] on both axes
	v := viewportAt(2, 128, 128)

	r, err := VisibleRange(v, &testSource{})
	require.NoError(t, err)
	assert.Equal(t, TileRange{Zoom: 2, West: 1, North: 1, East: 3, South: 3}, r)
	assert.Equal(t, 4, r.Count())
	assert.Len(t, r.Addresses(), 4)
}

func TestVisibleRangeClampsToSourceMaxZoom(t *testing.T) {
	v := viewportAt(12.5, 100, 100)

	r, err := VisibleRange(v, &testSource{maxZoom: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, r.Zoom)
}

func TestVisibleRangeRejectsHugeRange(t *testing.T) {
	v := NewViewport(100000, 100000, gg.Pt(128, 128), 10, 0)

	_, err := VisibleRange(v, &testSource{})
	assert.ErrorIs(t, err, ErrTooManyTiles)
}

func TestVisibleRangeRejectsSingularTransform(t *testing.T) {
	v := viewportAt(2, 128, 128)
	v.ScreenFromMap = gg.Matrix{}

	_, err := VisibleRange(v, &testSource{})
	assert.ErrorIs(t, err, ErrInvalidTransform)
}

func TestViewportDecomposesTransform(t *testing.T) {
	v := NewViewport(800, 600, gg.Pt(100, 50), 7.5, math.Pi/6)

	assert.InDelta(t, 7.5, v.Zoom(), 1e-9)
	assert.InDelta(t, math.Pi/6, v.Rotation(), 1e-9)

	center := v.ScreenPoint(gg.Pt(100, 50), false)
	assert.InDelta(t, 400, center.X, 1e-9)
	assert.InDelta(t, 300, center.Y, 1e-9)

	back := v.MapPoint(center, false)
	assert.InDelta(t, 100, back.X, 1e-9)
	assert.InDelta(t, 50, back.Y, 1e-9)
}

func TestBirdsEyeRoundTrip(t *testing.T) {
	v := viewportAt(4, 128, 128)
	v.BirdsEyeRotation = 0.6

	for _, p := range []gg.Point{gg.Pt(10, 20), gg.Pt(400, 100), gg.Pt(256, 500)} {
		got := v.FromBirdsEye(v.ToBirdsEye(p))
		assert.InDelta(t, p.X, got.X, 1e-6)
		assert.InDelta(t, p.Y, got.Y, 1e-6)
	}
}

func TestTiltWidensMapRect(t *testing.T) {
	flat := viewportAt(4, 128, 128)
	tilted := flat
	tilted.BirdsEyeRotation = 0.6

	assert.Greater(t, tilted.MapRect().Width(), flat.MapRect().Width())
}
