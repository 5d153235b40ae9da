package middleware

import (
	"strings"

	"github.com/dimitrije/memorai-api/internal/services"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	UserIDKey     = "user_id"
	UserEmailKey  = "user_email"
	GlobalRoleKey = "global_role"
)

// TokenVerifier validates API tokens presented as bearer credentials.
type TokenVerifier interface {
	Verify(token string) (*services.APIClaims, error)
}

func Auth(verifier TokenVerifier) drift.HandlerFunc {
	return func(c *drift.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Unauthorized("missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			c.Unauthorized("invalid authorization header format")
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		userID, err := claims.UserID()
		if err != nil || userID == uuid.Nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(GlobalRoleKey, claims.Role)

		c.Next()
	}
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

func GetUserEmail(c *drift.Context) string {
	if email, ok := c.Get(UserEmailKey); ok {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return ""
}

// GetGlobalRole is the role snapshot carried by the token. Privileged checks re-read it from
// the database.
func GetGlobalRole(c *drift.Context) string {
	if role, ok := c.Get(GlobalRoleKey); ok {
		if r, ok := role.(string); ok {
			return r
		}
	}
	return ""
}

// GetIdentity returns the authenticated caller, or the zero Identity.
func GetIdentity(c *drift.Context) services.Identity {
	return services.Identity{UserID: GetUserID(c), Email: GetUserEmail(c)}
}
