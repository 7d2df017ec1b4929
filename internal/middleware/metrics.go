package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records latency, status and concurrency of every request. Requests
// are labelled by route template, so /coverage/2024-09-16 reports as
// /coverage/:date.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		metricsSvc.TrackInFlight(1)
		defer metricsSvc.TrackInFlight(-1)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
