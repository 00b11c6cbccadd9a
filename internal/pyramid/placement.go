package pyramid

import (
	"math"

	"github.com/gogpu/gg"
)

// Placement positions a tile's TileSize square on screen. The square is
// drawn with Transform about its top-left corner, which sits at Position.
type Placement struct {
	Position  gg.Point
	Bounds    gg.Rect
	Rotation  float64
	Scale     float64
	Transform gg.Matrix
}

// Matrix maps tile pixels to screen pixels.
func (p Placement) Matrix() gg.Matrix {
	return gg.Translate(p.Position.X, p.Position.Y).Multiply(p.Transform)
}

// MapOrigin is the map-space top-left corner of a tile.
func MapOrigin(a Address) gg.Point {
	size := TileSize / math.Exp2(float64(a.Zoom))
	return gg.Pt(float64(a.X)*size, float64(a.Y)*size)
}

// Place computes where t is drawn for viewport v. offset shifts imagery
// that is misaligned with the map.
func Place(t *Tile, v Viewport, offset gg.Point) Placement {
	anchor := v.ScreenPoint(MapOrigin(t.Display()), false)
	rotation := v.Rotation()
	scale := math.Exp2(-float64(t.Address.Zoom)) * v.Scale()
	return Placement{
		Position:  anchor.Add(offset),
		Bounds:    gg.NewRect(gg.Pt(0, 0), gg.Pt(TileSize, TileSize)),
		Rotation:  rotation,
		Scale:     scale,
		Transform: gg.Rotate(rotation).Multiply(gg.Scale(scale, scale)),
	}
}

// PlaceAll updates the placement of every live tile and marks whether it
// overlaps the screen.
func PlaceAll(tiles *TileSet, v Viewport, offset gg.Point) {
	for _, t := range tiles.tiles {
		t.Placement = Place(t, v, offset)
		t.Visible = OverlapsScreen(t, v)
	}
}
