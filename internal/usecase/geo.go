package usecase

import (
	"math"

	"github.com/gogpu/gg"
	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// earthHalf is half the web mercator world width in meters.
const earthHalf = math.Pi * 6378137

// MapPoint converts a lon/lat point to zoom 0 map space.
func MapPoint(p orb.Point) gg.Point {
	m := project.WGS84.ToMercator(p)
	x := (m.X() + earthHalf) / (2 * earthHalf) * pyramid.TileSize
	y := (earthHalf - m.Y()) / (2 * earthHalf) * pyramid.TileSize
	return gg.Pt(x, y)
}

// MapRect converts a lon/lat bound to zoom 0 map space.
func MapRect(b orb.Bound) gg.Rect {
	return gg.NewRect(MapPoint(b.LeftTop()), MapPoint(b.RightBottom()))
}

// ViewportForBound returns an untilted viewport showing exactly b at zoom.
func ViewportForBound(b orb.Bound, zoom float64) pyramid.Viewport {
	r := MapRect(b)
	scale := math.Exp2(zoom)
	center := gg.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	return pyramid.NewViewport(r.Width()*scale, r.Height()*scale, center, zoom, 0)
}
