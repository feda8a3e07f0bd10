package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ===========================================================================
// CORS Middleware
// Dashboard frontends call the API from another origin with cookies
// ===========================================================================

// CORS allowedOrigins may contain "*" to reflect any origin
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
			CSRFHeaderName, "Authorization", RequestIDHeader,
		},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}

	switch {
	case len(allowedOrigins) == 0:
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	case slices.Contains(allowedOrigins, "*"):
		cfg.AllowOriginFunc = func(string) bool { return true }
	default:
		cfg.AllowOrigins = allowedOrigins
	}

	return cors.New(cfg)
}
