package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Guard protects the researcher-facing control routes. With no secret it
// is disabled and every route stays open.
type Guard struct {
	secret []byte
}

// NewGuard builds a guard from the shared JWT secret. An empty secret
// yields a disabled guard.
func NewGuard(secret string) *Guard {
	return &Guard{secret: []byte(secret)}
}

// Enabled reports whether the guard enforces authentication.
func (g *Guard) Enabled() bool {
	return g != nil && len(g.secret) > 0
}

// RequireRole returns middleware that admits only tokens carrying the
// required role or higher. When the guard is disabled the middleware
// passes every request through untouched.
func (g *Guard) RequireRole(required Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Enabled() {
			c.Next()
			return
		}

		claims, err := ParseJWT(extractBearer(c.Request.Header.Get("Authorization")), g.secret)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			c.AbortWithStatusJSON(403, gin.H{"error": "forbidden"})
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), role, claims.Subject))
		c.Next()
	}
}

func extractBearer(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
