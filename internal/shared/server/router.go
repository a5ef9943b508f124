package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docproc/internal/documents"
	"docproc/internal/services/health"
	"docproc/internal/shared/config"
	"docproc/internal/shared/metrics"
	"docproc/internal/shared/server/middleware"
	"docproc/internal/shared/server/respond"
)

// RouterDeps contains dependencies required to build the HTTP router.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	Health          *health.Service
	// Now overrides the rate limiter clock in tests.
	Now func() time.Time
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil)
	}
	r.GET("/health", func(c *gin.Context) {
		respond.OK(c, healthSvc.Status(c.Request.Context()))
	})
	r.GET("/metrics", metrics.Handler())

	if dir := strings.TrimSpace(deps.Config.PublicDir); dir != "" {
		r.Static("/static", dir)
	}

	if deps.DocumentHandler != nil {
		limiter := middleware.NewRateLimiter(deps.Now)
		rule := middleware.RateLimitRule{PerMinute: deps.Config.UploadRatePerMinute}
		deps.DocumentHandler.RegisterRoutes(r, middleware.RateLimit(rule, limiter))
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
