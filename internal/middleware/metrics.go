package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/service"
)

// Metrics observes every request's method, route, status, and latency.
// Routes are labelled by their template (e.g. /contracts/:id) so contract
// IDs do not explode metric cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
