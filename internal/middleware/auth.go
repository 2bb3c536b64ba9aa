package middleware

import (
	"strings"

	"hospital-app-server/internal/config"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// Principal is the authenticated caller extracted from the bearer token.
type Principal struct {
	UserID   string
	Username string
	Role     models.Role
}

const principalKey = "principal"

// AuthMiddleware parses the Authorization header once per request and
// injects a typed Principal into the context for downstream handlers.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authentication required. Please login.")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid or expired token. Please login again.")
			c.Abort()
			return
		}

		c.Set(principalKey, Principal{
			UserID:   claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
		})

		c.Next()
	}
}

// RequireRoles allows only the listed roles past this point. Must run after
// AuthMiddleware.
func RequireRoles(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			utils.Unauthorized(c, "Authentication required. Please login.")
			c.Abort()
			return
		}

		for _, role := range allowed {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetPrincipal returns the authenticated caller set by AuthMiddleware.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
