package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/claudegate/claudegate/internal/api/handlers"
)

// corsMiddleware answers preflights and stamps the allow headers. With no
// configured origins every origin is allowed; otherwise only listed origins
// are echoed back.
func corsMiddleware(origins func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := origins()
		if len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin := c.GetHeader("Origin"); origin != "" && slices.Contains(allowed, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Api-Key, Cache-Control")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// apiKeyAuth guards the model-facing endpoints. An empty key list leaves the
// server open. Both `Authorization: Bearer` and `X-Api-Key` are accepted.
func apiKeyAuth(keys func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := keys()
		if len(configured) == 0 {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if token == "" {
			token = c.GetHeader("X-Api-Key")
		}
		if token != "" && slices.Contains(configured, token) {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, handlers.ErrorResponse{Error: handlers.ErrorDetail{
			Message: "invalid or missing api key",
			Type:    "authentication_error",
		}})
		c.Abort()
	}
}

// managementAuth guards the management group. Websocket clients cannot set
// headers from a browser, so the key is also accepted as a query parameter.
func managementAuth(key func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := key()
		if configured == "" {
			c.JSON(http.StatusForbidden, handlers.ErrorResponse{Error: handlers.ErrorDetail{
				Message: "management endpoints disabled: no management-key configured",
				Type:    "permission_error",
			}})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if token == "" {
			token = c.Query("key")
		}
		if token == configured {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, handlers.ErrorResponse{Error: handlers.ErrorDetail{
			Message: "invalid or missing management key",
			Type:    "authentication_error",
		}})
		c.Abort()
	}
}

// requestLog logs one line per request with latency and status. The toggle
// is read per request so a config reload takes effect immediately.
func requestLog(enabled func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Info("request")
	}
}
