package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/imagery/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware("guide-helper-imagery"))
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)

	layer := v1.Group("/layer")
	layer.GET("", handler.Status)
	layer.PUT("/viewport", handler.SetViewport)
	layer.GET("/tiles", handler.Tiles)
	layer.PUT("/darkmode", handler.SetDarkMode)
	layer.PUT("/offset", handler.SetOffset)
	layer.PUT("/visibility", handler.SetVisibility)
	layer.GET("/source", handler.Source)
	layer.PUT("/source", handler.SetSource)
	layer.POST("/purge", handler.Purge)
	layer.POST("/prefetch", handler.Prefetch)

	v1.GET("/snapshot.png", handler.Snapshot)

	v1.GET("/errors", handler.Errors)
	v1.DELETE("/errors", handler.ClearErrors)
	v1.DELETE("/errors/:id", handler.DismissError)

	v1.GET("/cache/stats", handler.CacheStats)
	v1.POST("/cache/purge-expired", handler.PurgeExpired)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		start := time.Now()

		c.Next()

		latency := time.Since(start)

		l.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
