package pyramid

import (
	"image"
	"sort"

	"github.com/google/hilbert"
)

// Prefetcher downloads single tiles into the content cache for offline
// use. It skips the live set, eviction and the coarser retry ladder, and
// is safe for concurrent use.
type Prefetcher struct {
	source Source
	cache  ContentCache
	decode DecodeFunc
}

func NewPrefetcher(src Source, cache ContentCache, decode DecodeFunc) *Prefetcher {
	return &Prefetcher{source: src, cache: cache, decode: decode}
}

// DownloadTile fetches the tile named by quadKey. done is called exactly
// once and reports only whether an image was obtained.
func (p *Prefetcher) DownloadTile(quadKey string, done func(ok bool)) {
	a, err := ParseQuadKey(quadKey)
	if err != nil {
		done(false)
		return
	}
	src := p.source
	p.cache.Get(quadKey,
		func() (string, error) { return src.URL(a) },
		p.decode,
		func(img image.Image, err error) { done(err == nil && img != nil) },
	)
}

// NeededTiles lists quadkeys covering v from the current zoom level to two
// levels deeper, capped at the source's max zoom, that have not been
// cached yet. Unlike the live view there is no tile cap: the caller chose
// the area. Each level is ordered along a Hilbert curve so neighbouring
// downloads stay close together.
func NeededTiles(v Viewport, src Source, cached func(quadKey string) bool) []string {
	if !v.Valid() {
		return nil
	}
	rect := v.MapRect()
	zoom := ZoomLevel(v.Zoom(), src.RoundZoomUp(), src.MaxZoom())
	minZoom := min(zoom, src.MaxZoom())
	maxZoom := min(zoom+2, src.MaxZoom())

	var needed []string
	for z := minZoom; z <= maxZoom; z++ {
		r := RangeForRect(rect, z)
		if r.West < 0 || r.West >= r.East || r.North < 0 || r.North >= r.South {
			// fully zoomed out, the rect spans more than one world
			continue
		}
		var level []Address
		for _, a := range r.Addresses() {
			if !a.Valid() || a.X >= 1<<z {
				continue
			}
			if cached != nil && cached(a.QuadKey()) {
				continue
			}
			level = append(level, a)
		}
		sortHilbert(level, z)
		for _, a := range level {
			needed = append(needed, a.QuadKey())
		}
	}
	return needed
}

func sortHilbert(addrs []Address, zoom int) {
	h, err := hilbert.NewHilbert(1 << zoom)
	if err != nil {
		return
	}
	code := make(map[Address]int, len(addrs))
	for _, a := range addrs {
		d, err := h.MapInverse(a.X, a.Y)
		if err != nil {
			return
		}
		code[a] = d
	}
	sort.Slice(addrs, func(i, j int) bool { return code[addrs[i]] < code[addrs[j]] })
}
