package pyramid

import (
	"math"

	"github.com/gogpu/gg"
)

// ScreenQuad returns the four screen corners of a tile, clockwise from the
// top-left, as they appear through the tilted view.
func ScreenQuad(t *Tile, v Viewport) [4]gg.Point {
	a := t.Display()
	size := TileSize / float64(int(1)<<a.Zoom)
	o := MapOrigin(a)
	return [4]gg.Point{
		v.ScreenPoint(o, true),
		v.ScreenPoint(gg.Pt(o.X+size, o.Y), true),
		v.ScreenPoint(gg.Pt(o.X+size, o.Y+size), true),
		v.ScreenPoint(gg.Pt(o.X, o.Y+size), true),
	}
}

// OverlapsScreen reports whether any tile corner is on screen, any screen
// corner is inside the tile, or the two outlines cross.
func OverlapsScreen(t *Tile, v Viewport) bool {
	quad := ScreenQuad(t, v)
	for _, p := range quad {
		if v.Bounds.Contains(p) {
			return true
		}
	}
	b := v.Bounds
	screen := [4]gg.Point{b.Min, gg.Pt(b.Max.X, b.Min.Y), b.Max, gg.Pt(b.Min.X, b.Max.Y)}
	for _, p := range screen {
		if quadContains(quad, p) {
			return true
		}
	}
	for i := range quad {
		p, q := quad[i], quad[(i+1)%len(quad)]
		for j := range screen {
			if segmentsCross(p, q, screen[j], screen[(j+1)%len(screen)]) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports whether segments ab and cd properly intersect.
// Touching endpoints and NaN coordinates do not count.
func segmentsCross(a, b, c, d gg.Point) bool {
	d1 := b.Sub(a).Cross(c.Sub(a))
	d2 := b.Sub(a).Cross(d.Sub(a))
	d3 := d.Sub(c).Cross(a.Sub(c))
	d4 := d.Sub(c).Cross(b.Sub(c))
	return d1*d2 < 0 && d3*d4 < 0
}

// quadContains tests p against a convex quad of either winding.
func quadContains(q [4]gg.Point, p gg.Point) bool {
	var pos, neg bool
	for i := range q {
		a, b := q[i], q[(i+1)%len(q)]
		c := b.Sub(a).Cross(p.Sub(a))
		if math.IsNaN(c) {
			// a corner past the horizon
			return false
		}
		if c > 0 {
			pos = true
		} else if c < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

// PruneOffscreen removes tiles that no longer overlap the screen and
// returns how many were removed.
func PruneOffscreen(tiles *TileSet, v Viewport) int {
	var remove []*Tile
	for _, t := range tiles.tiles {
		if !OverlapsScreen(t, v) {
			remove = append(remove, t)
		}
	}
	for _, t := range remove {
		tiles.Remove(t)
	}
	return len(remove)
}

// PruneCovered removes zoom levels hidden by complete coverage. Scanning
// away from zoom in either direction, the first non-empty level without a
// transparent tile marks every level beyond it for removal. Empty levels
// neither start nor stop the scan.
func PruneCovered(tiles *TileSet, zoom int) int {
	var buckets [MaxZoom][]*Tile
	var transparent [MaxZoom]bool
	for _, t := range tiles.tiles {
		z := t.Address.Zoom
		if z < 0 || z >= MaxZoom {
			continue
		}
		buckets[z] = append(buckets[z], t)
		if !t.Opaque() {
			transparent[z] = true
		}
	}
	zoom = min(max(zoom, 0), MaxZoom-1)

	var remove []*Tile
	covered := false
	for z := zoom; z >= 0; z-- {
		if len(buckets[z]) == 0 {
			continue
		}
		if covered {
			remove = append(remove, buckets[z]...)
		} else if !transparent[z] {
			covered = true
		}
	}
	covered = false
	for z := zoom; z < MaxZoom; z++ {
		if len(buckets[z]) == 0 {
			continue
		}
		if covered {
			remove = append(remove, buckets[z]...)
		} else if !transparent[z] {
			covered = true
		}
	}

	for _, t := range remove {
		tiles.Remove(t)
	}
	return len(remove)
}
