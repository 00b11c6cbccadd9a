package main

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/imagery/internal/app"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/spf13/cobra"
)

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	l := logger.NewZapLogger(cfg.Logger)

	services, err := app.NewServices(cfg, l)
	if err != nil {
		return err
	}
	defer services.Close()

	stats, err := services.Layer.Stats(cmd.Context())
	if err != nil {
		return err
	}

	src := services.Layer.Source()
	fmt.Fprintf(cmd.OutOrStdout(), "source:  %s (%s)\n", src.Name, src.Identifier)
	fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\n", cfg.Cache.Backend)
	fmt.Fprintf(cmd.OutOrStdout(), "tiles:   %d\n", stats.DiskCount)
	fmt.Fprintf(cmd.OutOrStdout(), "bytes:   %d\n", stats.DiskBytes)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	l := logger.NewZapLogger(cfg.Logger)

	services, err := app.NewServices(cfg, l)
	if err != nil {
		return err
	}
	defer services.Close()

	ctx := cmd.Context()

	if purgeAll {
		if err := services.Layer.Purge(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "removed every cached tile")
		return nil
	}

	n, err := services.Layer.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d tiles older than %s\n", n, cfg.Cache.MaxAge)
	return nil
}
