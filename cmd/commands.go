package main

import (
	"log"

	"github.com/jaennil/guide_helper/backend/imagery/internal/app"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
	"github.com/spf13/cobra"
)

var (
	prefetchBound   []float64
	prefetchZoom    float64
	prefetchWorkers int

	rootCmd = &cobra.Command{
		Use:   "imagery",
		Short: "Map tile pyramid cache and renderer",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the imagery HTTP service",
		Run: func(cmd *cobra.Command, args []string) {
			app.Run(loadConfig())
		},
	}

	prefetchCmd = &cobra.Command{
		Use:   "prefetch",
		Short: "Download the tiles covering a lon/lat box for offline use",
		RunE:  runPrefetch,
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the disk tile cache",
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print tile count and size of the configured source",
		RunE:  runCacheStats,
	}

	cachePurgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Remove expired tiles, or every tile with --all",
		RunE:  runCachePurge,
	}
	purgeAll bool
)

func init() {
	prefetchCmd.Flags().Float64SliceVar(&prefetchBound, "bbox", nil, "west,south,east,north in degrees")
	prefetchCmd.Flags().Float64Var(&prefetchZoom, "zoom", 12, "zoom level of the first prefetched level")
	prefetchCmd.Flags().IntVar(&prefetchWorkers, "workers", 0, "parallel downloads, defaults to LAYER_PREFETCHERS")
	_ = prefetchCmd.MarkFlagRequired("bbox")

	cachePurgeCmd.Flags().BoolVar(&purgeAll, "all", false, "remove every tile of the source")

	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd)
	rootCmd.AddCommand(serveCmd, prefetchCmd, cacheCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.New()
	if err != nil {
		log.Fatalln("failed to load config: ", err)
	}
	return cfg
}
