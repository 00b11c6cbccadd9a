package pyramid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/gogpu/gg"
)

var errNetwork = errors.New("connection reset")

type testSource struct {
	maxZoom     int
	roundUp     bool
	placeholder []byte
}

func (s *testSource) Name() string       { return "Test Imagery" }
func (s *testSource) Identifier() string { return "test" }
func (s *testSource) MaxZoom() int {
	if s.maxZoom == 0 {
		return 21
	}
	return s.maxZoom
}
func (s *testSource) RoundZoomUp() bool { return s.roundUp }
func (s *testSource) URL(a Address) (string, error) {
	return fmt.Sprintf("https://tiles.example.com/%d/%d/%d.png", a.Zoom, a.X, a.Y), nil
}
func (s *testSource) IsPlaceholder(data []byte) bool {
	return s.placeholder != nil && bytes.Equal(data, s.placeholder)
}

type cacheResult struct {
	img image.Image
	err error
}

type pendingGet struct {
	key  string
	done func(image.Image, error)
}

// testCache resolves Get from a per-key script. Unscripted keys fail with
// fallback. In async mode completions wait for resolve.
type testCache struct {
	mu       sync.Mutex
	memory   map[string]image.Image
	results  map[string]cacheResult
	fallback error
	async    bool
	pending  []pendingGet
	gets     []string
	resets   int
	removes  int
}

func newTestCache() *testCache {
	return &testCache{
		memory:   make(map[string]image.Image),
		results:  make(map[string]cacheResult),
		fallback: errNetwork,
	}
}

func (c *testCache) Get(key string, url func() (string, error), decode DecodeFunc, done func(image.Image, error)) image.Image {
	c.mu.Lock()
	c.gets = append(c.gets, key)
	if img, ok := c.memory[key]; ok {
		c.mu.Unlock()
		done(img, nil)
		return img
	}
	if c.async {
		c.pending = append(c.pending, pendingGet{key: key, done: done})
		c.mu.Unlock()
		return nil
	}
	r, ok := c.results[key]
	if !ok {
		r = cacheResult{err: c.fallback}
	}
	c.mu.Unlock()
	done(r.img, r.err)
	return nil
}

func (c *testCache) resolve() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, p := range pending {
		r, ok := c.results[p.key]
		if !ok {
			r = cacheResult{err: c.fallback}
		}
		p.done(r.img, r.err)
	}
}

func (c *testCache) RemoveAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removes++
	clear(c.memory)
	return nil
}

func (c *testCache) ResetMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	clear(c.memory)
}

func (c *testCache) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.gets)
}

type testReporter struct {
	titles []string
	errs   []error
}

func (r *testReporter) ReportError(title string, err error) {
	r.titles = append(r.titles, title)
	r.errs = append(r.errs, err)
}

type testProgress struct {
	value, increments int
}

func (p *testProgress) Increment() { p.value++; p.increments++ }
func (p *testProgress) Decrement() { p.value-- }

type testSurface struct {
	attached map[string]*Tile
	detached []string
	onAttach func(t *Tile)
}

func newTestSurface() *testSurface {
	return &testSurface{attached: make(map[string]*Tile)}
}

func (s *testSurface) Attach(t *Tile) {
	s.attached[t.Key()] = t
	if s.onAttach != nil {
		s.onAttach(t)
	}
}

func (s *testSurface) Detach(t *Tile) {
	delete(s.attached, t.Key())
	s.detached = append(s.detached, t.Key())
}

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	for y := 0; y < TileSize; y++ {
		for x := 0; x < TileSize; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// viewportAt shows a 512x512 screen centered on map point (cx, cy).
func viewportAt(zoom float64, cx, cy float64) Viewport {
	return NewViewport(512, 512, gg.Pt(cx, cy), zoom, 0)
}

func addTile(set *TileSet, a Address, opaque bool) *Tile {
	t := newTile(a.Normalize(), a.X)
	if opaque {
		t.setContent(solidImage(color.White), t.Address)
	}
	set.Add(t)
	return t
}
