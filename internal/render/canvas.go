// Package render displays the live tile pyramid: a surface that tracks
// attached tiles and composites them into a PNG snapshot.
package render

import (
	"bytes"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/gogpu/gg"
	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
)

// Canvas is a pyramid.Surface. Attach and Detach come from the layer
// goroutine; Snapshot reads placements and must run there too.
type Canvas struct {
	mu       sync.Mutex
	tiles    map[string]*pyramid.Tile
	attaches int
	detaches int
}

var _ pyramid.Surface = (*Canvas)(nil)

func NewCanvas() *Canvas {
	return &Canvas{tiles: make(map[string]*pyramid.Tile)}
}

func (c *Canvas) Attach(t *pyramid.Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles[t.Key()] = t
	c.attaches++
}

func (c *Canvas) Detach(t *pyramid.Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.tiles[t.Key()]; ok && cur == t {
		delete(c.tiles, t.Key())
	}
	c.detaches++
}

func (c *Canvas) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiles)
}

// Counts returns how many attaches and detaches the canvas has seen.
func (c *Canvas) Counts() (attaches, detaches int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attaches, c.detaches
}

// paintOrder lists drawable tiles by z-index, coarse first.
func (c *Canvas) paintOrder() []*pyramid.Tile {
	c.mu.Lock()
	out := make([]*pyramid.Tile, 0, len(c.tiles))
	for _, t := range c.tiles {
		if t.Visible && t.Image != nil {
			out = append(out, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex() != out[j].ZIndex() {
			return out[i].ZIndex() < out[j].ZIndex()
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Render composites the visible tiles onto a width x height image.
func (c *Canvas) Render(width, height int) (image.Image, error) {
	dc, err := c.draw(width, height)
	if err != nil {
		return nil, err
	}
	defer dc.Close()
	return dc.Image(), nil
}

// Snapshot renders the visible tiles and encodes them as PNG.
func (c *Canvas) Snapshot(width, height int) ([]byte, error) {
	dc, err := c.draw(width, height)
	if err != nil {
		return nil, err
	}
	defer dc.Close()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Canvas) draw(width, height int) (*gg.Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid snapshot size %dx%d", width, height)
	}
	dc := gg.NewContext(width, height)
	for _, t := range c.paintOrder() {
		src := t.SourceRect()
		dc.Push()
		dc.SetTransform(t.Placement.Matrix())
		dc.DrawImageEx(gg.ImageBufFromImage(t.Image), gg.DrawImageOptions{
			DstWidth:  pyramid.TileSize,
			DstHeight: pyramid.TileSize,
			SrcRect:   &src,
		})
		dc.Pop()
	}
	return dc, nil
}
