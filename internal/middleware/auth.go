package middleware

import (
	"errors"
	"net/http"
	"strings"

	"whatsdesk/internal/auth"
	"whatsdesk/internal/dto"
	"whatsdesk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ===========================================================================
// Operator authentication
// ===========================================================================

const (
	ContextKeyUserID      = "user_id"
	ContextKeyWorkspaceID = "workspace_id"
	ContextKeyUserRole    = "user_role"

	AccessTokenCookie = "access_token"
)

func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requestToken dashboard sessions use the cookie, API clients the header.
// The header wins when both are present.
func requestToken(c *gin.Context) string {
	if token := bearerToken(c); token != "" {
		return token
	}
	cookie, _ := c.Cookie(AccessTokenCookie)
	return cookie
}

// AuthMiddleware guards the dashboard API. Every handler behind it can rely
// on the user, workspace and role keys being set.
func AuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentication required"))
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("TOKEN_EXPIRED", "Token has expired"))
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("INVALID_TOKEN", "Invalid token"))
			return
		}

		setOperator(c, claims)
		c.Next()
	}
}

func setOperator(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyWorkspaceID, claims.WorkspaceID)
	c.Set(ContextKeyUserRole, claims.Role)
}

// RequireAdmin integrations, personas and instance management
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := GetUserRole(c)
		if !role.CanManage() {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Insufficient permissions"))
			return
		}
		c.Next()
	}
}

func get[T any](c *gin.Context, key string) (T, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	return get[uuid.UUID](c, ContextKeyUserID)
}

func GetWorkspaceID(c *gin.Context) (uuid.UUID, bool) {
	return get[uuid.UUID](c, ContextKeyWorkspaceID)
}

func GetUserRole(c *gin.Context) (models.UserRole, bool) {
	return get[models.UserRole](c, ContextKeyUserRole)
}
