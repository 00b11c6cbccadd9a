package pyramid

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Source describes a raster tile provider.
type Source interface {
	// Name is the human readable provider name used in error reports.
	Name() string
	// Identifier scopes the persistent cache of the provider.
	Identifier() string
	URL(a Address) (string, error)
	MaxZoom() int
	RoundZoomUp() bool
	// IsPlaceholder reports whether data is the provider's "no imagery" tile.
	IsPlaceholder(data []byte) bool
}

// DecodeFunc turns fetched bytes into an image. Returning an error keeps
// the bytes out of every cache tier.
type DecodeFunc func(data []byte) (image.Image, error)

// ContentCache is a memory, disk and network backed image cache.
//
// Get returns the image synchronously on a memory hit, nil otherwise.
// done is called exactly once in every case, possibly on another goroutine.
type ContentCache interface {
	Get(key string, url func() (string, error), decode DecodeFunc, done func(image.Image, error)) image.Image
	RemoveAll(ctx context.Context) error
	ResetMemory()
}

type Progress interface {
	Increment()
	Decrement()
}

type ErrorReporter interface {
	ReportError(title string, err error)
}

// ErrNoImagery marks a soft miss: empty bytes or a placeholder tile.
var ErrNoImagery = errors.New("no imagery for tile")

// FetchError is reported once a tile's retry ladder is exhausted.
type FetchError struct {
	Source  string
	Address Address
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: tile %s: %v", e.Source, e.Address, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
