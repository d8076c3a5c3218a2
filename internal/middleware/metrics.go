package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/telemetry"
)

// noRoute labels requests that matched no route (404/405) so unknown paths do
// not inflate label cardinality.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds
// for every request. The path label is the route template from c.FullPath()
// (e.g. /api/organizations/projects/:projectId), never the raw URL.
//
// Register it after gin.Recovery() so the status written by recovery is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}

		method := c.Request.Method
		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
