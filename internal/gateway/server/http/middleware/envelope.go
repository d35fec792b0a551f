package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/strategyforge/gateway/internal/proxy"
)

// abortWithEnvelope stops the chain with a gateway error envelope.
func abortWithEnvelope(c *gin.Context, status int, summary, detail string) {
	c.AbortWithStatusJSON(status, proxy.ErrorEnvelope{Error: summary, Detail: detail})
}
