package pyramid

import (
	"image/color"
	"math"
	"testing"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
)

func TestPlaceAlignsTileWithMap(t *testing.T) {
	v := viewportAt(2, 128, 128)
	tile := newTile(Address{Zoom: 2, X: 1, Y: 1}, 1)

	p := Place(tile, v, gg.Pt(0, 0))

	assert.InDelta(t, 0, p.Position.X, 1e-9)
	assert.InDelta(t, 0, p.Position.Y, 1e-9)
	assert.InDelta(t, 1, p.Scale, 1e-9)
	assert.InDelta(t, 0, p.Rotation, 1e-9)

	corner := p.Matrix().TransformPoint(gg.Pt(TileSize, TileSize))
	assert.InDelta(t, 256, corner.X, 1e-9)
	assert.InDelta(t, 256, corner.Y, 1e-9)
}

func TestPlaceScalesCoarserTiles(t *testing.T) {
	v := viewportAt(2, 128, 128)
	tile := newTile(Address{Zoom: 0}, 0)

	p := Place(tile, v, gg.Pt(0, 0))

	assert.InDelta(t, 4, p.Scale, 1e-9)
	assert.InDelta(t, -256, p.Position.X, 1e-9)
	assert.InDelta(t, -256, p.Position.Y, 1e-9)
}

func TestPlaceAppliesOffset(t *testing.T) {
	v := viewportAt(2, 128, 128)
	tile := newTile(Address{Zoom: 2, X: 1, Y: 1}, 1)

	p := Place(tile, v, gg.Pt(3, -4))

	assert.InDelta(t, 3, p.Position.X, 1e-9)
	assert.InDelta(t, -4, p.Position.Y, 1e-9)
}

func TestPlaceUsesDisplayColumn(t *testing.T) {
	v := viewportAt(2, 0, 128)
	tile := newTile(Address{Zoom: 2, X: 3, Y: 1}, -1)

	p := Place(tile, v, gg.Pt(0, 0))

	// map x -64 is screen x 0
	assert.InDelta(t, 0, p.Position.X, 1e-9)
}

func TestPlaceFollowsRotation(t *testing.T) {
	v := NewViewport(512, 512, gg.Pt(128, 128), 2, math.Pi/2)
	tile := newTile(Address{Zoom: 2, X: 2, Y: 2}, 2)

	p := Place(tile, v, gg.Pt(0, 0))

	assert.InDelta(t, math.Pi/2, p.Rotation, 1e-9)
	// the tile's top-left is the map center
	assert.InDelta(t, 256, p.Position.X, 1e-9)
	assert.InDelta(t, 256, p.Position.Y, 1e-9)

	// its right edge points down the screen
	right := p.Matrix().TransformPoint(gg.Pt(TileSize, 0))
	assert.InDelta(t, 256, right.X, 1e-9)
	assert.InDelta(t, 512, right.Y, 1e-9)
}

func TestPlaceAllMarksTilesVisible(t *testing.T) {
	set := NewTileSet(nil)
	a := addTile(set, Address{Zoom: 2, X: 1, Y: 1}, true)
	b := addTile(set, Address{Zoom: 3, X: 2, Y: 2}, false)
	off := addTile(set, Address{Zoom: 3, X: 7, Y: 7}, true)
	off.Visible = true

	PlaceAll(set, viewportAt(2, 128, 128), gg.Pt(0, 0))

	assert.True(t, a.Visible)
	assert.True(t, b.Visible)
	assert.False(t, off.Visible, "x [224, 256] lies right of the screen")
	assert.InDelta(t, 0.5, b.Placement.Scale, 1e-9)
}

func TestSourceRectCropsAncestor(t *testing.T) {
	tile := newTile(Address{Zoom: 3, X: 5, Y: 2}, 5)
	tile.setContent(solidImage(color.Black), Address{Zoom: 1, X: 1, Y: 0})

	// 2 levels down: quadrant (1, 2) of a 4x4 grid of 64px cells
	assert.Equal(t, "(64,128)-(128,192)", tile.SourceRect().String())

	own := newTile(Address{Zoom: 3, X: 5, Y: 2}, 5)
	own.setContent(solidImage(color.Black), own.Address)
	assert.Equal(t, "(0,0)-(256,256)", own.SourceRect().String())
}
