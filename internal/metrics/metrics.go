// Package metrics exposes Prometheus collectors for the HTTP layer and the
// record lifecycle.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrms",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hrms",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RecordsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrms",
		Name:      "records_created_total",
		Help:      "Rows written, by kind (employee, attendance).",
	}, []string{"kind"})

	RecordsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hrms",
		Name:      "employees_deleted_total",
		Help:      "Employees removed together with their attendance.",
	})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrms",
		Name:      "rejections_total",
		Help:      "Writes refused before or at the store, by kind and field.",
	}, []string{"kind", "field"})
)

// GinMiddleware records request counts and latency keyed by the matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
