package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaennil/guide_helper/backend/imagery/internal/app"
	"github.com/jaennil/guide_helper/backend/imagery/internal/usecase"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func runPrefetch(cmd *cobra.Command, args []string) error {
	if len(prefetchBound) != 4 {
		return fmt.Errorf("--bbox needs four values, got %d", len(prefetchBound))
	}
	b := orb.Bound{
		Min: orb.Point{prefetchBound[0], prefetchBound[1]},
		Max: orb.Point{prefetchBound[2], prefetchBound[3]},
	}
	if b.Min.X() >= b.Max.X() || b.Min.Y() >= b.Max.Y() {
		return fmt.Errorf("--bbox %v is empty", prefetchBound)
	}

	cfg := loadConfig()
	if prefetchWorkers > 0 {
		cfg.Layer.Prefetchers = prefetchWorkers
	}
	l := logger.NewZapLogger(cfg.Logger)

	services, err := app.NewServices(cfg, l)
	if err != nil {
		return err
	}
	defer services.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	result, err := services.Prefetch.Prefetch(ctx, usecase.ViewportForBound(b, prefetchZoom), func(done, total int) {
		bar.ChangeMax(total)
		_ = bar.Set(done)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nrequested %d, downloaded %d, failed %d\n",
		result.Requested, result.Downloaded, result.Failed)
	return nil
}
