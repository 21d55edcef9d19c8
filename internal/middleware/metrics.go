package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dat-progress-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes every request under its route template. Probe and scrape
// endpoints are skipped; unknown paths share one label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || isProbe(c.Request.URL.Path) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func isProbe(path string) bool {
	switch path {
	case "/health", "/ready":
		return true
	}
	return strings.HasPrefix(path, "/metrics")
}
