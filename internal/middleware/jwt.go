package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/auth"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/response"
)

const (
	// ContextUsername is the key for the operator name in gin context.
	ContextUsername = "username"
	// ContextRole is the key for the operator role in gin context.
	ContextRole = "role"
)

// JWT returns a middleware that validates the operator token and sets the
// claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}
