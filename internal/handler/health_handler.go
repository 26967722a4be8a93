package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/internal/store"
	"github.com/gin-gonic/gin"
)

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// HealthHandler reports store and market readiness
type HealthHandler struct {
	store  *store.Store
	market *service.MarketService
	build  BuildInfo
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(st *store.Store, market *service.MarketService, build BuildInfo) *HealthHandler {
	return &HealthHandler{store: st, market: market, build: build}
}

// Health checks the store and broker
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	storeStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		storeStatus = err.Error()
	}

	snapshot := h.market.Snapshot()
	c.JSON(status, gin.H{
		"status":     http.StatusText(status),
		"version":    h.build.Version,
		"commit":     h.build.Commit,
		"build_time": h.build.BuildTime,
		"time":       time.Now().Unix(),
		"store":      storeStatus,
		"market": gin.H{
			"loading":    snapshot.Loading,
			"mock":       snapshot.Mock,
			"updated_at": snapshot.UpdatedAt,
		},
	})
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
}
