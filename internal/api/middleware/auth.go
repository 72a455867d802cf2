package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"greendrake/localboard/internal/auth"
	"greendrake/localboard/internal/utils"
)

const (
	// ContextKeyUserID holds the authenticated utils.SixID.
	ContextKeyUserID = "userID"
	// ContextKeyIsAdmin holds the admin claim.
	ContextKeyIsAdmin = "isAdmin"
)

// bearerClaims returns the verified claims, nil when no Authorization
// header is present, or an error message for a malformed or invalid token.
func bearerClaims(c *gin.Context, jwtSecret string) (*auth.Claims, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, ""
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return nil, "Authorization header format must be Bearer {token}"
	}
	claims, err := auth.ValidateJWT(token, jwtSecret)
	if err != nil {
		return nil, "Invalid or expired token"
	}
	return claims, ""
}

func setIdentity(c *gin.Context, claims *auth.Claims) {
	// ValidateJWT already checked the subject.
	userID, _ := claims.UserID()
	c.Set(ContextKeyUserID, userID)
	c.Set(ContextKeyIsAdmin, claims.IsAdmin)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, msg := bearerClaims(c, jwtSecret)
		if claims == nil {
			if msg == "" {
				msg = "Authorization header required"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the viewer when a token is sent, so
// public reads can show owner actions and like state. A bad token is
// still an error.
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, msg := bearerClaims(c, jwtSecret)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		if claims != nil {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// AdminMiddleware checks for admin privileges. AuthMiddleware must run first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextKeyIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}

// UserID returns the caller, or the zero ID for anonymous requests.
func UserID(c *gin.Context) utils.SixID {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if id, ok := v.(utils.SixID); ok {
			return id
		}
	}
	return utils.SixID{}
}
