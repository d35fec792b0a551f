package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/strategyforge/gateway/internal/auth"
	"github.com/strategyforge/gateway/internal/observability"
)

// IdentityKey is the gin context key for the admitted identity.
const IdentityKey = "identity"

// Authentication returns a middleware applying the authentication gate.
// Public paths pass without an identity; rejected requests get the fixed
// 401 body and the chain is aborted.
func Authentication(gate *auth.Authenticator, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		if gate.IsPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		identity, err := gate.Authenticate(c.Request)
		if err != nil {
			logger.Debug("authentication rejected",
				observability.String("requestID", GetRequestID(c)),
				observability.String("method", c.Request.Method),
				observability.String("path", c.Request.URL.Path),
				observability.Error(err),
			)
			c.Header("Content-Type", "application/json")
			c.Header("WWW-Authenticate", wwwAuthenticate(gate.Mode()))
			c.AbortWithStatus(http.StatusUnauthorized)
			_, _ = c.Writer.WriteString(auth.RejectionBody)
			return
		}

		c.Set(IdentityKey, identity)
		c.Request = c.Request.WithContext(auth.ContextWithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// GetIdentity returns the admitted identity, if any.
func GetIdentity(c *gin.Context) (*auth.Identity, bool) {
	if v, exists := c.Get(IdentityKey); exists {
		if identity, ok := v.(*auth.Identity); ok {
			return identity, true
		}
	}
	return nil, false
}

func wwwAuthenticate(mode auth.Mode) string {
	if mode == auth.ModeAPIKey {
		return `ApiKey realm="strategyforge"`
	}
	return `Bearer realm="strategyforge"`
}
