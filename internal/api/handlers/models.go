package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/claudegate/claudegate/internal/translator/claude/helpers"
)

// ListModels serves GET /v1/models with the alias catalog.
func (h *Handler) ListModels(c *gin.Context) {
	created := time.Now().Unix()
	models := helpers.ListModels()
	data := make([]gin.H, 0, len(models))
	for _, id := range models {
		data = append(data, gin.H{
			"id":       id,
			"object":   "model",
			"created":  created,
			"owned_by": "anthropic",
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

// Health serves GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
