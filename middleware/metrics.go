package middleware

import (
	"strconv"
	"time"

	"repuestos-backoffice/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency by route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestCounter.WithLabelValues(m.Service(), c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(m.Service(), c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
