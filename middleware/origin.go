package middleware

import (
	"net/http"
	"strings"

	"PPCollab/global"
	"PPCollab/logger"
	"PPCollab/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrOriginDenied = errs.NewCodeError(40301, "origin not allowed")

// OriginAllowed reports whether origin is in allowed. An empty list allows
// everything, and so does a request without an Origin header (non-browser
// clients).
func OriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(origin, "/")) {
			return true
		}
	}
	return false
}

// Origin rejects websocket upgrades on path from origins outside the list
// returned by allowed. allowed is called per request so live settings apply
// without a restart.
func Origin(path string, allowed func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || c.Request.URL.Path != path {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if !OriginAllowed(origin, allowed()) {
			logger.Warn("reject origin", zap.String("origin", origin), zap.String("remote", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusForbidden, global.Fail(ErrOriginDenied.WrapMsg("", "origin", origin)))
			return
		}
		c.Next()
	}
}
