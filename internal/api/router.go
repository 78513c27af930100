package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hrms/internal/httpmiddleware"
	"hrms/internal/metrics"
)

// Options carries the optional middleware for NewRouter.
type Options struct {
	Production  bool
	CORSOrigins []string
	Limiter     httpmiddleware.Limiter       // nil disables rate limiting
	Idempotency *httpmiddleware.Idempotency // nil disables replay
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(httpmiddleware.RequestID())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.log.Error("panic recovered", zap.Any("panic", recovered), zap.String("request_id", c.GetString(httpmiddleware.RequestIDKey)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": msgInternal})
	}))
	r.Use(httpmiddleware.AccessLog(h.log, "/healthz", "/metrics"))
	r.Use(metrics.GinMiddleware())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders(opts.Production))
	if opts.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(opts.Limiter, h.log))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	write := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		if opts.Idempotency == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{opts.Idempotency.GinMiddleware(), handler}
	}

	r.GET("/employees/", h.ListEmployees)
	r.POST("/employees/", write(h.CreateEmployee)...)
	r.DELETE("/employees/:id/", h.DeleteEmployee)
	r.GET("/employees/:id/attendance/", h.EmployeeAttendance)
	r.POST("/attendance/", write(h.MarkAttendance)...)

	r.NoRoute(notFound)

	return r
}

// corsConfig allows every origin when origins is empty or contains "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", httpmiddleware.IdempotencyHeader, httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{httpmiddleware.RequestIDHeader, "Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
