package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/sosharvest/api/handler"
	"github.com/use-agent/sosharvest/api/middleware"
	"github.com/use-agent/sosharvest/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work. reg may be
// nil, in which case /metrics is not served.
func NewRouter(r handler.Runner, reg *prometheus.Registry, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(gin.Logger())

	v1 := e.Group("/api/v1")
	v1.GET("/health", handler.Health(r, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/runs", handler.StartRun(r))
	protected.GET("/runs/:id", handler.GetRun(r))
	protected.GET("/runs/:id/artifacts/:key", handler.GetArtifact(r))

	if reg != nil {
		protected.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	return e
}
