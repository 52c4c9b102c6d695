package middleware

import (
	"context"
	"strings"

	"github.com/flora/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling labels each request's CPU and allocation samples with its
// area, route template and method. Requests for skipped paths and
// unmatched routes are left unlabelled.
func Profiling(enabled bool, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if !enabled || route == "" || skipped[c.Request.URL.Path] {
			c.Next()
			return
		}
		labels := telemetry.ProfileLabels{
			Area:   resourceOf(route),
			Route:  route,
			Method: c.Request.Method,
		}
		telemetry.Profile(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// resourceOf returns the first static segment after /api:
// "/api/pos/transactions/:id/return" -> "pos"
func resourceOf(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || part[0] == ':' || part[0] == '*' {
			continue
		}
		return part
	}
	return ""
}
