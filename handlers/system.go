package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/castboard/castboard/internal/users"
	"github.com/castboard/castboard/pkg/logger"
	"github.com/castboard/castboard/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// RegisterHealth registers the liveness and readiness endpoints.
// /ready returns 200 only when every check passes.
func RegisterHealth(rg gin.IRoutes, started time.Time, checks map[string]Check) {
	rg.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	rg.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		ready := true
		deps := map[string]bool{}
		for name, check := range checks {
			err := check(ctx)
			deps[name] = err == nil
			if err != nil {
				ready = false
				logger.Warnf("readiness: %s: %v", name, err)
			}
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(started).String()})
	})
}

// RegisterMe registers GET /me for authenticated callers. The profile is
// refreshed from the token on every call when a users service is available.
func RegisterMe(rg gin.IRoutes, svc *users.Service) {
	rg.GET("/me", middleware.RequireAuth(), func(c *gin.Context) {
		p := middleware.PrincipalFrom(c)
		out := gin.H{"principal": p}
		if svc != nil {
			u, err := svc.UpsertPrincipal(c.Request.Context(), p)
			if err != nil {
				logger.Errorf("upsert user %s: %v", p.Sub, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
				return
			}
			out["user"] = u
		}
		c.JSON(http.StatusOK, out)
	})
}
