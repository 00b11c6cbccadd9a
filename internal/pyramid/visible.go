package pyramid

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gg"
)

// MaxVisibleTiles caps a single pass. A larger range means the transform is
// degenerate, not that the user wants that many tiles.
const MaxVisibleTiles = 4000

var (
	ErrInvalidTransform = errors.New("invalid viewport transform")
	ErrTooManyTiles     = errors.New("too many visible tiles")
)

// TileRange is the half-open block [West, East) x [North, South) at Zoom.
// West and East are not normalized and may fall outside [0, 2^Zoom).
type TileRange struct {
	Zoom  int
	West  int
	North int
	East  int
	South int
}

func (r TileRange) Count() int {
	if r.East <= r.West || r.South <= r.North {
		return 0
	}
	return (r.East - r.West) * (r.South - r.North)
}

// Addresses lists the range column by column.
func (r TileRange) Addresses() []Address {
	out := make([]Address, 0, r.Count())
	for x := r.West; x < r.East; x++ {
		for y := r.North; y < r.South; y++ {
			out = append(out, Address{Zoom: r.Zoom, X: x, Y: y})
		}
	}
	return out
}

// ZoomLevel rounds a fractional zoom the way the source prefers and clamps
// it to [1, maxZoom].
func ZoomLevel(zoom float64, roundUp bool, maxZoom int) int {
	var z float64
	if roundUp {
		z = math.Ceil(zoom)
	} else {
		z = math.Floor(zoom)
	}
	level := 1
	if z > 1 {
		level = int(min(z, float64(MaxZoom-1)))
	}
	if level > maxZoom {
		level = max(maxZoom, 1)
	}
	return level
}

// RangeForRect covers a map-space rect with tiles at zoom.
func RangeForRect(rect gg.Rect, zoom int) TileRange {
	scale := math.Exp2(float64(zoom)) / TileSize
	return TileRange{
		Zoom:  zoom,
		West:  int(math.Floor(rect.Min.X * scale)),
		North: int(math.Floor(rect.Min.Y * scale)),
		East:  int(math.Ceil(rect.Max.X * scale)),
		South: int(math.Ceil(rect.Max.Y * scale)),
	}
}

// VisibleRange computes the tiles needed to cover the viewport at the
// source's effective zoom level.
func VisibleRange(v Viewport, src Source) (TileRange, error) {
	if !v.Valid() {
		return TileRange{}, ErrInvalidTransform
	}
	zoom := ZoomLevel(v.Zoom(), src.RoundZoomUp(), src.MaxZoom())
	rect := v.MapRect()
	for _, f := range []float64{rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return TileRange{}, ErrInvalidTransform
		}
	}
	// compare in float space so a wild transform cannot overflow int
	scale := math.Exp2(float64(zoom)) / TileSize
	dx := math.Ceil(rect.Max.X*scale) - math.Floor(rect.Min.X*scale)
	dy := math.Ceil(rect.Max.Y*scale) - math.Floor(rect.Min.Y*scale)
	if dx*dy > MaxVisibleTiles {
		return TileRange{}, fmt.Errorf("%w: %.0fx%.0f at zoom %d", ErrTooManyTiles, dx, dy, zoom)
	}
	return RangeForRect(rect, zoom), nil
}
