package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"carelink-server/internal/authz"
	"carelink-server/internal/config"
	"carelink-server/internal/models"
	"carelink-server/internal/utils"
)

const (
	ctxUserID    = "userID"
	ctxUserRole  = "userRole"
	ctxPrincipal = "principal"
)

// AuthMiddleware creates a middleware for JWT authentication. On success it
// stores the user id, role, and the resolved authz.Principal in the context
// for downstream handlers.
func AuthMiddleware(cfg *config.Config, resolver *authz.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
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
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxPrincipal, resolver.Resolve(claims.UserID, claims.Role))

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get(ctxUserRole)
		if !exists {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		role, ok := userRole.(models.Role)
		if !ok {
			utils.InternalServerError(c, "User role in context is not of expected type.")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetUserIDFromContext returns the authenticated user id set by AuthMiddleware.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// GetPrincipal returns the resolved principal set by AuthMiddleware. Routes
// without AuthMiddleware have no principal and get Anonymous.
func GetPrincipal(c *gin.Context) authz.Principal {
	value, exists := c.Get(ctxPrincipal)
	if !exists {
		return authz.Anonymous{}
	}
	principal, ok := value.(authz.Principal)
	if !ok {
		return authz.Anonymous{}
	}
	return principal
}
