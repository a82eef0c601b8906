package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/logger"
	"storefront/internal/metrics"
)

// Logger writes one access line per request and counts it by route template.
func Logger(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.HTTPRequest(c.Request.Method, route, strconv.Itoa(status))

		line := "%s %s %d %s %s"
		args := []interface{}{c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.ClientIP()}
		switch {
		case status >= 500:
			log.Error(line, args...)
		case status >= 400:
			log.Warn(line, args...)
		default:
			log.Info(line, args...)
		}
	}
}
