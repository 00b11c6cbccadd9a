package app

import (
	"context"
	"fmt"

	"github.com/jaennil/guide_helper/backend/imagery/internal/render"
	"github.com/jaennil/guide_helper/backend/imagery/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/imagery/internal/tilesource"
	"github.com/jaennil/guide_helper/backend/imagery/internal/usecase"
	"github.com/jaennil/guide_helper/backend/imagery/internal/webcache"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
)

// Services is the wired application shared by the server and the CLI.
type Services struct {
	Disk     cache.TileCache
	Status   *usecase.StatusUseCase
	Layer    *usecase.LayerUseCase
	Prefetch *usecase.PrefetchUseCase

	logger logger.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServices opens the disk tier, builds the configured source and
// starts the layer goroutine. Close releases everything.
func NewServices(cfg *config.Config, l logger.Logger) (*Services, error) {
	src, err := tilesource.FromConfig(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to build tile source: %w", err)
	}

	disk, err := cache.New(cfg.Cache, cfg.Redis, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Cache.Backend, err)
	}

	factory := func(src *tilesource.Source) *webcache.Cache {
		return webcache.New(webcache.Config{
			Provider:    src.Identifier(),
			MemoryBytes: cfg.Cache.MemoryBytes,
			MemoryCount: cfg.Cache.MemoryCount,
			Timeout:     cfg.Network.Timeout,
			UserAgent:   cfg.Network.UserAgent,
			Referer:     cfg.Network.Referer,
			RateLimit:   cfg.Network.RateLimit,
			Burst:       cfg.Network.Burst,
		}, disk, webcache.WithLogger(l))
	}

	status := usecase.NewStatusUseCase(l)
	layer := usecase.NewLayerUseCase(src, factory, render.NewCanvas(), status, cfg.Layer, cfg.Cache.MaxAge, l)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Services{
		Disk:     disk,
		Status:   status,
		Layer:    layer,
		Prefetch: usecase.NewPrefetchUseCase(layer, cfg.Layer.Prefetchers, l),
		logger:   l,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		_ = layer.Run(ctx)
	}()

	l.Info("tile layer started",
		"source", src.Name(),
		"identifier", src.Identifier(),
		"cache", cfg.Cache.Backend,
	)
	return s, nil
}

func (s *Services) Close() {
	s.cancel()
	<-s.done
	s.Layer.Close()
	if err := s.Disk.Close(); err != nil {
		s.logger.Error("failed to close disk cache", "error", err)
	}
}
