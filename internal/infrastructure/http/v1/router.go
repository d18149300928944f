package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers the tile routes. The provider PUT routes replace what
// every client is served and are only added when adminEnabled is set.
func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled, adminEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware("guide-helper-overzoom"))
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)
	v1.GET("/tile/:z/:x/:y", handler.Tile)
	v1.GET("/remote/:z/:x/:y", handler.RemoteTile)

	v1.GET("/provider", handler.GetProvider)
	v1.GET("/remote/provider", handler.GetRemoteProvider)
	if adminEnabled {
		v1.PUT("/provider", handler.PutProvider)
		v1.PUT("/remote/provider", handler.PutRemoteProvider)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), l))

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
