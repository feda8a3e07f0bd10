package middleware

import (
	"crypto/subtle"
	"net/http"

	"whatsdesk/internal/auth"
	"whatsdesk/internal/dto"

	"github.com/gin-gonic/gin"
)

// ===========================================================================
// Service Auth Middleware
// Function routes are called by the backend itself with the service key and
// by the dashboard with an operator token
// ===========================================================================

const ContextKeyService = "service_call"

// ServiceAuth accepts the service key as bearer token, otherwise an operator
// access token (header or cookie). Failures answer the flat {error} body.
func ServiceAuth(serviceKey string, jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.FunctionError("missing authorization"))
			return
		}

		if serviceKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(serviceKey)) == 1 {
			c.Set(ContextKeyService, true)
			c.Next()
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.FunctionError("invalid authorization"))
			return
		}

		setOperator(c, claims)
		c.Next()
	}
}

// IsServiceCall true when the request carried the service key
func IsServiceCall(c *gin.Context) bool {
	return c.GetBool(ContextKeyService)
}
