package handler

import (
	"strconv"

	"github.com/aura-bot/internal/middleware"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/pkg/response"
	"github.com/gin-gonic/gin"
)

// TradeLogHandler handles trade journal API requests
type TradeLogHandler struct {
	tradeLogService *service.TradeLogService
}

// NewTradeLogHandler creates a new TradeLogHandler
func NewTradeLogHandler(tradeLogService *service.TradeLogService) *TradeLogHandler {
	return &TradeLogHandler{tradeLogService: tradeLogService}
}

// ListTrades returns the user's trades, newest first
// GET /api/v1/trades
func (h *TradeLogHandler) ListTrades(c *gin.Context) {
	trades, err := h.tradeLogService.List(c.Request.Context(), middleware.GetKey(c))
	if err != nil {
		writeError(c, err, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []models.TradeLog{}
	}

	response.SuccessList(c, trades, len(trades))
}

// CreateTrade logs a closed trade
// POST /api/v1/trades
func (h *TradeLogHandler) CreateTrade(c *gin.Context) {
	var req service.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trade, err := h.tradeLogService.Create(c.Request.Context(), middleware.GetKey(c), &req)
	if err != nil {
		writeError(c, err, "failed to log trade")
		return
	}

	response.Created(c, trade)
}

// UpdateJournalRequest represents a journal entry edit
type UpdateJournalRequest struct {
	JournalEntry string `json:"journalEntry"`
}

// UpdateJournal replaces a trade's journal entry
// PATCH /api/v1/trades/:id/journal
func (h *TradeLogHandler) UpdateJournal(c *gin.Context) {
	var req UpdateJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trade, err := h.tradeLogService.UpdateJournal(c.Request.Context(), middleware.GetKey(c), c.Param("id"), req.JournalEntry)
	if err != nil {
		writeError(c, err, "failed to update journal")
		return
	}

	response.Success(c, trade)
}

// DeleteTrade removes a trade; the request must carry confirm=true
// DELETE /api/v1/trades/:id?confirm=true
func (h *TradeLogHandler) DeleteTrade(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))

	if err := h.tradeLogService.Delete(c.Request.Context(), middleware.GetKey(c), c.Param("id"), confirmed); err != nil {
		writeError(c, err, "failed to delete trade")
		return
	}

	response.Success(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// RegisterRoutes registers trade journal routes
func (h *TradeLogHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	trades := rg.Group("/trades")
	trades.Use(authMiddleware)
	{
		trades.GET("", h.ListTrades)
		trades.POST("", h.CreateTrade)
		trades.PATCH("/:id/journal", h.UpdateJournal)
		trades.DELETE("/:id", h.DeleteTrade)
	}
}
