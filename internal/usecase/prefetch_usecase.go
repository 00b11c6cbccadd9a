package usecase

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"golang.org/x/sync/errgroup"
)

type PrefetchResult struct {
	Requested  int `json:"requested"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
}

// ProgressFunc observes a running prefetch. It may be called from several
// goroutines at once.
type ProgressFunc func(done, total int)

// PrefetchUseCase downloads the tiles around a viewport for offline use.
type PrefetchUseCase struct {
	layer   *LayerUseCase
	workers int
	logger  logger.Logger
}

func NewPrefetchUseCase(layer *LayerUseCase, workers int, l logger.Logger) *PrefetchUseCase {
	return &PrefetchUseCase{
		layer:   layer,
		workers: max(workers, 1),
		logger:  l,
	}
}

// PrefetchCurrent prefetches around the layer's current viewport.
func (uc *PrefetchUseCase) PrefetchCurrent(ctx context.Context, progress ProgressFunc) (PrefetchResult, error) {
	vp, err := uc.layer.Viewport(ctx)
	if err != nil {
		return PrefetchResult{}, err
	}
	return uc.Prefetch(ctx, vp, progress)
}

// Prefetch downloads every tile NeededTiles lists for vp that is not on
// disk yet. Individual failures are counted, not returned.
func (uc *PrefetchUseCase) Prefetch(ctx context.Context, vp pyramid.Viewport, progress ProgressFunc) (PrefetchResult, error) {
	p, src, c, err := uc.layer.prefetcher(ctx)
	if err != nil {
		return PrefetchResult{}, err
	}

	keys, err := c.Keys(ctx)
	if err != nil {
		return PrefetchResult{}, fmt.Errorf("failed to list cached tiles: %w", err)
	}
	cached := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		cached[k] = struct{}{}
	}

	needed := pyramid.NeededTiles(vp, src, func(quadKey string) bool {
		_, ok := cached[quadKey]
		return ok
	})
	total := len(needed)
	uc.logger.Info("prefetch started", "source", src.Name(), "tiles", total, "cached", len(keys))

	var downloaded, failed, finished atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)
	for _, quadKey := range needed {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := make(chan bool, 1)
			p.DownloadTile(quadKey, func(ok bool) { res <- ok })

			var ok bool
			select {
			case ok = <-res:
			case <-gctx.Done():
				return gctx.Err()
			}
			if ok {
				downloaded.Add(1)
			} else {
				failed.Add(1)
				uc.logger.Debug("prefetch tile failed", "quad_key", quadKey)
			}
			if progress != nil {
				progress(int(finished.Add(1)), total)
			}
			return nil
		})
	}
	err = g.Wait()

	result := PrefetchResult{
		Requested:  total,
		Downloaded: int(downloaded.Load()),
		Failed:     int(failed.Load()),
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return result, fmt.Errorf("prefetch interrupted: %w", err)
	}
	uc.logger.Info("prefetch finished", "source", src.Name(), "downloaded", result.Downloaded, "failed", result.Failed)
	return result, nil
}
