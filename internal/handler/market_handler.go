package handler

import (
	"strings"

	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/pkg/response"
	"github.com/gin-gonic/gin"
)

// MarketHandler handles market price API requests
type MarketHandler struct {
	marketService *service.MarketService
}

// NewMarketHandler creates a new MarketHandler
func NewMarketHandler(marketService *service.MarketService) *MarketHandler {
	return &MarketHandler{
		marketService: marketService,
	}
}

// GetPrices returns the current market snapshot
// GET /api/v1/market/prices
func (h *MarketHandler) GetPrices(c *gin.Context) {
	response.Success(c, h.marketService.Snapshot())
}

// GetPrice returns the current data of one symbol
// GET /api/v1/market/prices/:symbol
func (h *MarketHandler) GetPrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	data, ok := h.marketService.Price(symbol)
	if !ok {
		response.NotFound(c, "no price for "+symbol)
		return
	}

	response.Success(c, gin.H{
		"symbol": symbol,
		"data":   data,
	})
}

// RegisterRoutes registers market routes
func (h *MarketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	market := rg.Group("/market")
	{
		market.GET("/prices", h.GetPrices)
		market.GET("/prices/:symbol", h.GetPrice)
	}
}
