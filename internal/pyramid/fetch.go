package pyramid

import (
	"errors"
	"image"

	"github.com/jaennil/guide_helper/backend/imagery/pkg/metrics"
)

// request makes sure a tile exists for a. done runs on the owner goroutine
// exactly once, with a *FetchError when the retry ladder is exhausted.
func (l *Layer) request(a Address, done func(error)) {
	if !a.Valid() {
		// past the north or south edge of the projection
		done(nil)
		return
	}

	n := a.Normalize()
	if t, ok := l.tiles.Get(n.Key()); ok {
		t.DisplayX = a.X
		done(nil)
		return
	}

	t := newTile(n, a.X)
	l.guard.enter()
	l.tiles.Add(t)
	if l.guard.exit() {
		l.SetNeedsLayout()
	}

	l.attempt(t, n, l.decoder(), done)
}

// attempt fetches content for t at address at, which is t's own address or
// one of its ancestors.
func (l *Layer) attempt(t *Tile, at Address, decode DecodeFunc, done func(error)) {
	src := l.source
	img := l.cache.Get(at.QuadKey(),
		func() (string, error) { return src.URL(at) },
		decode,
		func(img image.Image, err error) {
			l.mailbox.post(func() { l.complete(t, at, decode, img, err, done) })
		},
	)
	if img != nil {
		t.setContent(img, at)
	}
}

func (l *Layer) complete(t *Tile, at Address, decode DecodeFunc, img image.Image, err error, done func(error)) {
	if !l.tiles.Contains(t) {
		// evicted while in flight
		done(nil)
		return
	}

	switch {
	case err == nil && img != nil:
		if t.State == StateLoaded && t.ContentFrom == at {
			// already shown from the memory tier
			done(nil)
			return
		}
		t.setContent(img, at)
		if at != t.Address {
			l.logger.Debug("showing coarser imagery", "tile", t.Address, "from", at)
		}
		l.SetNeedsLayout()
		done(nil)

	case err == nil || errors.Is(err, ErrNoImagery):
		metrics.SoftMisses.Inc()
		t.State = StateEmpty
		done(nil)

	case at.Zoom > t.minZoom:
		metrics.DegradedRetries.Inc()
		t.State = StateDegrading
		l.logger.Debug("retrying tile at coarser zoom", "tile", t.Address, "failed", at, "error", err)
		l.attempt(t, at.Parent(), decode, done)
		if t.State == StateLoaded {
			l.SetNeedsLayout()
		}

	default:
		t.State = StateFailed
		done(&FetchError{Source: l.source.Name(), Address: t.Address, Err: err})
	}
}
