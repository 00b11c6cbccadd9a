package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Source    Source    `envPrefix:"SOURCE_"`
		Network   Network   `envPrefix:"NETWORK_"`
		Layer     Layer     `envPrefix:"LAYER_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"console"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-imagery"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"168h"`
	}

	// Cache configures the tiered content cache. Backend selects the disk
	// tier: filesystem, sqlite, badger, redis or memory.
	Cache struct {
		Backend      string        `env:"BACKEND" envDefault:"filesystem"`
		Dir          string        `env:"DIR" envDefault:"webcache"`
		SQLitePath   string        `env:"SQLITE_PATH" envDefault:"webcache.db"`
		BadgerPath   string        `env:"BADGER_PATH" envDefault:"webcache.badger"`
		MemoryBytes  int64         `env:"MEMORY_BYTES" envDefault:"20000000"`
		MemoryCount  int           `env:"MEMORY_COUNT" envDefault:"1000"`
		MaxAge       time.Duration `env:"MAX_AGE" envDefault:"168h"`
		PurgeOnStart bool          `env:"PURGE_ON_START" envDefault:"true"`
	}

	Source struct {
		Preset          string `env:"PRESET" envDefault:"mapnik"`
		Name            string `env:"NAME"`
		Identifier      string `env:"IDENTIFIER"`
		URL             string `env:"URL"`
		MaxZoom         int    `env:"MAX_ZOOM" envDefault:"0"`
		RoundZoomUp     bool   `env:"ROUND_ZOOM_UP" envDefault:"false"`
		APIKey          string `env:"API_KEY"`
		PlaceholderPath string `env:"PLACEHOLDER_PATH"`
		WMSProjection   string `env:"WMS_PROJECTION"`
	}

	Network struct {
		Timeout   time.Duration `env:"TIMEOUT" envDefault:"30s"`
		UserAgent string        `env:"USER_AGENT" envDefault:"GuideHelper/1.0 (https://github.com/jaennil/guide_helper)"`
		Referer   string        `env:"REFERER" envDefault:"https://guidehelper.ru.tuna.am"`
		RateLimit float64       `env:"RATE_LIMIT" envDefault:"20"`
		Burst     int           `env:"BURST" envDefault:"8"`
	}

	Layer struct {
		ScreenWidth  float64 `env:"SCREEN_WIDTH" envDefault:"1024"`
		ScreenHeight float64 `env:"SCREEN_HEIGHT" envDefault:"768"`
		OffsetX      float64 `env:"OFFSET_X" envDefault:"0"`
		OffsetY      float64 `env:"OFFSET_Y" envDefault:"0"`
		DarkMode     bool    `env:"DARK_MODE" envDefault:"false"`
		Prefetchers  int     `env:"PREFETCHERS" envDefault:"4"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
