package pyramid

import (
	"image"
	"sort"
)

type State int

const (
	StateEmpty State = iota
	StateLoading
	StateDegrading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateDegrading:
		return "degrading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Tile is one cell of the live pyramid. It is owned by the layer goroutine.
type Tile struct {
	// Address is normalized and never changes.
	Address Address
	// DisplayX is the unnormalized column the tile was last requested at.
	DisplayX int
	State    State
	Image    image.Image
	// ContentFrom is the address Image was fetched at: Address itself or a
	// coarser ancestor after a degraded retry.
	ContentFrom Address
	Visible     bool
	Placement   Placement

	minZoom int
}

func newTile(a Address, displayX int) *Tile {
	return &Tile{
		Address:  a,
		DisplayX: displayX,
		State:    StateLoading,
		minZoom:  max(a.Zoom-6, 1),
	}
}

func (t *Tile) Key() string {
	return t.Address.Key()
}

// ZIndex puts finer zoom levels above coarser ones.
func (t *Tile) ZIndex() float64 {
	return float64(t.Address.Zoom)*0.01 - 0.25
}

func (t *Tile) Opaque() bool {
	return t.Image != nil
}

// Display is the address at which the tile is drawn.
func (t *Tile) Display() Address {
	return Address{Zoom: t.Address.Zoom, X: t.DisplayX, Y: t.Address.Y}
}

func (t *Tile) setContent(img image.Image, from Address) {
	t.Image = img
	t.ContentFrom = from
	t.State = StateLoaded
}

// SourceRect is the part of Image covering this tile. For content borrowed
// from an ancestor it is the quadrant chain leading down to Address.
func (t *Tile) SourceRect() image.Rectangle {
	if t.Image == nil {
		return image.Rectangle{}
	}
	b := t.Image.Bounds()
	d := t.Address.Zoom - t.ContentFrom.Zoom
	if d <= 0 {
		return b
	}
	w, h := b.Dx()>>d, b.Dy()>>d
	if w == 0 || h == 0 {
		return b
	}
	col := t.Address.X - t.ContentFrom.X<<d
	row := t.Address.Y - t.ContentFrom.Y<<d
	origin := b.Min.Add(image.Pt(col*w, row*h))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}
}

// Surface is where live tiles are displayed.
type Surface interface {
	Attach(t *Tile)
	Detach(t *Tile)
}

type nopSurface struct{}

func (nopSurface) Attach(*Tile) {}
func (nopSurface) Detach(*Tile) {}

// TileSet is the live tile mapping. Removal always detaches from the surface.
type TileSet struct {
	tiles   map[string]*Tile
	surface Surface
}

func NewTileSet(surface Surface) *TileSet {
	if surface == nil {
		surface = nopSurface{}
	}
	return &TileSet{
		tiles:   make(map[string]*Tile),
		surface: surface,
	}
}

func (s *TileSet) Get(key string) (*Tile, bool) {
	t, ok := s.tiles[key]
	return t, ok
}

// Contains reports whether t itself, not just its address, is live.
func (s *TileSet) Contains(t *Tile) bool {
	cur, ok := s.tiles[t.Key()]
	return ok && cur == t
}

func (s *TileSet) Add(t *Tile) {
	s.tiles[t.Key()] = t
	s.surface.Attach(t)
}

func (s *TileSet) Remove(t *Tile) {
	if !s.Contains(t) {
		return
	}
	delete(s.tiles, t.Key())
	s.surface.Detach(t)
}

func (s *TileSet) Clear() {
	for _, t := range s.tiles {
		s.surface.Detach(t)
	}
	clear(s.tiles)
}

func (s *TileSet) Len() int {
	return len(s.tiles)
}

// Tiles returns the live tiles ordered for painting, coarse first.
func (s *TileSet) Tiles() []*Tile {
	out := make([]*Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Address, out[j].Address
		if a.Zoom != b.Zoom {
			return a.Zoom < b.Zoom
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return out
}

func (s *TileSet) Keys() []string {
	tiles := s.Tiles()
	keys := make([]string, len(tiles))
	for i, t := range tiles {
		keys[i] = t.Key()
	}
	return keys
}
