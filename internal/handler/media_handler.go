package handler

import (
	"net/http"

	"github.com/aura-bot/internal/middleware"
	"github.com/aura-bot/internal/store"
	"github.com/gin-gonic/gin"
)

// MediaHandler serves recorded voice messages
type MediaHandler struct {
	store *store.Store
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(st *store.Store) *MediaHandler {
	return &MediaHandler{store: st}
}

// GetAudio streams a voice recording by its message id
// GET /api/v1/media/audio/:id
func (h *MediaHandler) GetAudio(c *gin.Context) {
	blob, err := h.store.GetAudio(c.Request.Context(), middleware.GetKey(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to load audio")
		return
	}

	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}

// RegisterRoutes registers media routes
func (h *MediaHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.GET("/media/audio/:id", authMiddleware, h.GetAudio)
}
