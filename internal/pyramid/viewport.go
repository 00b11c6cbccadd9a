package pyramid

import (
	"math"

	"github.com/gogpu/gg"
)

// BirdsEyeDistance is the eye-to-screen distance used for tilted views.
const BirdsEyeDistance = 1000.0

// Viewport is a read-only snapshot of the map view. Map space spans
// [0, TileSize) on both axes at zoom 0.
type Viewport struct {
	ScreenFromMap gg.Matrix
	Bounds        gg.Rect
	// BirdsEyeRotation tilts the view around the screen x axis, in radians.
	BirdsEyeRotation float64
}

// NewViewport centers map point center on a screen of the given size.
func NewViewport(width, height float64, center gg.Point, zoom, rotation float64) Viewport {
	scale := math.Exp2(zoom)
	m := gg.Translate(width/2, height/2).
		Multiply(gg.Rotate(rotation)).
		Multiply(gg.Scale(scale, scale)).
		Multiply(gg.Translate(-center.X, -center.Y))
	return Viewport{
		ScreenFromMap: m,
		Bounds:        gg.NewRect(gg.Pt(0, 0), gg.Pt(width, height)),
	}
}

func (v Viewport) Scale() float64 {
	return math.Hypot(v.ScreenFromMap.A, v.ScreenFromMap.D)
}

func (v Viewport) Rotation() float64 {
	return math.Atan2(v.ScreenFromMap.D, v.ScreenFromMap.A)
}

func (v Viewport) Zoom() float64 {
	return math.Log2(v.Scale())
}

// Valid reports whether the transform is invertible and finite.
func (v Viewport) Valid() bool {
	m := v.ScreenFromMap
	for _, f := range []float64{m.A, m.B, m.C, m.D, m.E, m.F} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return math.Abs(m.A*m.E-m.B*m.D) > 1e-12 && v.Bounds.Width() > 0 && v.Bounds.Height() > 0
}

func (v Viewport) center() gg.Point {
	return gg.Pt((v.Bounds.Min.X+v.Bounds.Max.X)/2, (v.Bounds.Min.Y+v.Bounds.Max.Y)/2)
}

func (v Viewport) tilted() bool {
	return v.BirdsEyeRotation != 0
}

// ToBirdsEye narrows a flat screen point toward the top of a tilted screen.
func (v Viewport) ToBirdsEye(p gg.Point) gg.Point {
	c := v.center()
	x, y := p.X-c.X, p.Y-c.Y

	z := y * -math.Sin(v.BirdsEyeRotation)
	scale := BirdsEyeDistance / (BirdsEyeDistance + z)
	if scale < 0 {
		scale = math.Inf(1)
	}
	x *= scale
	y *= scale * math.Cos(v.BirdsEyeRotation)

	return gg.Pt(x+c.X, y+c.Y)
}

func (v Viewport) FromBirdsEye(p gg.Point) gg.Point {
	c := v.center()
	x, y := p.X-c.X, p.Y-c.Y
	r := v.BirdsEyeRotation

	y *= BirdsEyeDistance / (BirdsEyeDistance*math.Cos(r) + y*math.Sin(r))
	x -= x * y * math.Sin(r) / BirdsEyeDistance

	return gg.Pt(x+c.X, y+c.Y)
}

func (v Viewport) ScreenPoint(mapPoint gg.Point, birdsEye bool) gg.Point {
	p := v.ScreenFromMap.TransformPoint(mapPoint)
	if birdsEye && v.tilted() {
		p = v.ToBirdsEye(p)
	}
	return p
}

func (v Viewport) MapPoint(screenPoint gg.Point, birdsEye bool) gg.Point {
	p := screenPoint
	if birdsEye && v.tilted() {
		p = v.FromBirdsEye(p)
	}
	return v.ScreenFromMap.Invert().TransformPoint(p)
}

// MapRect is the map-space bounding box of the screen.
func (v Viewport) MapRect() gg.Rect {
	b := v.Bounds
	corners := [4]gg.Point{
		b.Min,
		gg.Pt(b.Max.X, b.Min.Y),
		b.Max,
		gg.Pt(b.Min.X, b.Max.Y),
	}
	p := v.MapPoint(corners[0], true)
	rect := gg.NewRect(p, p)
	for _, c := range corners[1:] {
		p = v.MapPoint(c, true)
		rect = rect.Union(gg.NewRect(p, p))
	}
	return rect
}
