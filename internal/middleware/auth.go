package middleware

import (
	"context"
	"net/http"
	"strings"

	"taskhub/internal/domain"
	"taskhub/internal/pkg/jwt"
	"taskhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserLoader fetches the account behind a validated token. Satisfied by
// *repository.UserRepository.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// SessionResolver validates a raw refresh cookie without rotating it.
// Satisfied by *auth.Service.
type SessionResolver interface {
	ResolveSession(ctx context.Context, rawToken string) (*domain.User, error)
}

// RequireAuth is the bearer-token gate for the API surface. The JWT proves
// identity; the account row is re-read on every request so deactivation
// takes effect immediately, not at token expiry.
func RequireAuth(jwtService *jwt.Service, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be: Bearer <token>")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}

		userID, err := claims.SubjectID()
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			// Deleted account with a still-valid token. Same answer as a
			// forged token, no oracle.
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}
		if !user.IsActive {
			response.Error(c, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("role", string(user.Role))
		c.Set("user", user)
		c.Next()
	}
}

// WebSession is the read-only cookie gate for server-rendered pages. Missing
// or invalid cookies leave the request anonymous rather than failing it;
// handlers decide whether anonymous is acceptable.
func WebSession(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		user, err := resolver.ResolveSession(c.Request.Context(), raw)
		if err != nil {
			c.Next()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("role", string(user.Role))
		c.Set("user", user)
		c.Next()
	}
}

// RequireRole ensures that the authenticated user has the specified role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}

		if role.(string) != requiredRole {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole(string(domain.RoleAdmin))
}
