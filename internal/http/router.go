// Package httpapi mounts the report API on a Gin engine together with the
// cross-cutting middleware: tracing, correlation IDs, access logs, panic
// recovery, metrics, compression, CORS, security headers and rate limiting
// on the routes that can trigger a crawl.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-meme-report/internal/config"
	"github.com/tbourn/go-meme-report/internal/http/handlers"
	"github.com/tbourn/go-meme-report/internal/http/middleware"
)

// maxBodyBytes caps request bodies. No endpoint reads one today.
const maxBodyBytes = 64 << 10

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Body size limit
//  6. Metrics (+ /metrics)
//  7. gzip
//  8. CORS and security headers
//
// The token-bucket limiter is attached per route to the endpoints that may
// regenerate the report.
func RegisterRoutes(r *gin.Engine, svc handlers.ReportService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		CSP:        middleware.ReportCSP,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(svc)
	limited := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP()).Handler()

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/reports", limited, h.GenerateReport)
		api.GET("/reports/latest", limited, h.LatestReport)
		api.GET("/reports/latest.txt", limited, h.LatestReportText)

		api.GET("/memes/top", h.TopMemes)
		api.GET("/memes/series", h.MemeSeries)
		api.GET("/stats", h.Stats)
	}
}

// corsConfig allows every origin when none are configured. Credentials are
// never allowed; the API is read-mostly and unauthenticated.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "ETag", "Retry-After", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// limitBody wraps the body in http.MaxBytesReader so oversized reads fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
