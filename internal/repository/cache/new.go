package cache

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
)

// New opens the disk tier selected by cfg.Backend.
func New(cfg config.Cache, redisCfg config.Redis, l logger.Logger) (TileCache, error) {
	switch cfg.Backend {
	case "filesystem", "":
		return NewFilesystemCache(cfg.Dir)
	case "sqlite":
		return NewSQLiteCache(cfg.SQLitePath, l)
	case "badger":
		return NewBadgerCache(BadgerConfig{Path: cfg.BadgerPath}, l)
	case "redis":
		return NewRedisCache(RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      redisCfg.TTL,
		})
	case "memory":
		return NewMapCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
