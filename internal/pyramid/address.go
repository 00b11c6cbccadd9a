// Package pyramid keeps a live set of map tiles in sync with a viewport:
// it computes the visible tiles, fetches them through a tiered content
// cache with coarser fallbacks, prunes tiles that no longer contribute and
// positions the survivors on screen.
package pyramid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// TileSize is the pixel edge of a raster tile and the extent of map space.
	TileSize = 256

	// MaxZoom bounds the zoom levels a tile may carry.
	MaxZoom = 30
)

var (
	ErrInvalidKey     = errors.New("invalid tile key")
	ErrInvalidQuadKey = errors.New("invalid quadkey")
)

// Address represents tile coordinates in the XYZ scheme.
// X wraps around the antimeridian, Y does not.
type Address struct {
	Zoom int
	X    int
	Y    int
}

func (a Address) span() int {
	return 1 << a.Zoom
}

// Normalize returns the address with X taken modulo 2^Zoom.
func (a Address) Normalize() Address {
	n := a.span()
	x := a.X % n
	if x < 0 {
		x += n
	}
	return Address{Zoom: a.Zoom, X: x, Y: a.Y}
}

// Valid reports whether a tile exists at the address once X is normalized.
func (a Address) Valid() bool {
	return a.Zoom >= 0 && a.Zoom < MaxZoom && a.Y >= 0 && a.Y < a.span()
}

func (a Address) Parent() Address {
	return Address{Zoom: a.Zoom - 1, X: a.X >> 1, Y: a.Y >> 1}
}

// Key is the live-set key "zoom,x,y" of the normalized address.
func (a Address) Key() string {
	n := a.Normalize()
	return strconv.Itoa(n.Zoom) + "," + strconv.Itoa(n.X) + "," + strconv.Itoa(n.Y)
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Zoom, a.X, a.Y)
}

func ParseKey(key string) (Address, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		v[i] = n
	}
	a := Address{Zoom: v[0], X: v[1], Y: v[2]}
	if a.Zoom < 0 || a.Zoom >= MaxZoom {
		return Address{}, fmt.Errorf("%w: zoom out of range in %q", ErrInvalidKey, key)
	}
	return a, nil
}

// QuadKey encodes the normalized address as a Bing quadkey: one digit per
// zoom level, most significant first, digit = xbit | ybit<<1.
func (a Address) QuadKey() string {
	n := a.Normalize()
	var sb strings.Builder
	sb.Grow(n.Zoom)
	for i := n.Zoom; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if n.X&mask != 0 {
			digit++
		}
		if n.Y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

func ParseQuadKey(quadKey string) (Address, error) {
	if len(quadKey) >= MaxZoom {
		return Address{}, fmt.Errorf("%w: %q is too deep", ErrInvalidQuadKey, quadKey)
	}
	a := Address{Zoom: len(quadKey)}
	for i := a.Zoom; i > 0; i-- {
		mask := 1 << (i - 1)
		switch quadKey[a.Zoom-i] {
		case '0':
		case '1':
			a.X |= mask
		case '2':
			a.Y |= mask
		case '3':
			a.X |= mask
			a.Y |= mask
		default:
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidQuadKey, quadKey)
		}
	}
	return a, nil
}
