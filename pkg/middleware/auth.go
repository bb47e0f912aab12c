package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/castboard/castboard/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	claimsKey    = "claims"
	principalKey = "principal"

	// AccessTokenCookie lets browser forms authenticate without an Authorization header.
	AccessTokenCookie = "access_token"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// rawToken extracts the bearer token from the Authorization header, falling
// back to the access token cookie. ok=false means a header was present but malformed.
func rawToken(c *gin.Context) (token string, ok bool) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			return "", false
		}
		return token, true
	}
	if v, err := c.Cookie(AccessTokenCookie); err == nil {
		return v, true
	}
	return "", true
}

func authenticate(c *gin.Context, ver Verifier, raw string) error {
	idToken, err := ver.Verify(c.Request.Context(), raw)
	if err != nil {
		return err
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return fmt.Errorf("failed to parse claims: %w", err)
	}
	c.Set(claimsKey, claims)
	if p := models.PrincipalFromClaims(claims); p != nil {
		SetPrincipal(c, p)
	}
	return nil
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := rawToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		if err := authenticate(c, ver, token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}
		c.Next()
	}
}

// OptionalAuth populates the principal when a valid token is present and
// otherwise lets the request through as a guest. A nil verifier disables it.
func OptionalAuth(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ver == nil {
			c.Next()
			return
		}
		if token, ok := rawToken(c); ok && token != "" {
			_ = authenticate(c, ver, token)
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a principal.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests whose principal does not hold role:
// 401 without a principal, 403 with one.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !p.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// SetPrincipal stores the request principal.
func SetPrincipal(c *gin.Context, p *models.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the request principal or nil for guests.
func PrincipalFrom(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}
