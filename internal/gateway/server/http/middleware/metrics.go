package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strategyforge/gateway/internal/observability"
)

// Metrics returns a middleware recording request counts and latencies by
// route template, so path parameters do not inflate label cardinality.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.RequestStarted()

		c.Next()

		m.RecordRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
