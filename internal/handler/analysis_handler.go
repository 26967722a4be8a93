package handler

import (
	"github.com/aura-bot/internal/middleware"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/pkg/response"
	"github.com/gin-gonic/gin"
)

// AnalysisHandler handles user-initiated analysis requests
type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// AnalysisResponse carries the result with its level gate
type AnalysisResponse struct {
	*models.AnalysisResult
	// ShowLevels is true when stop loss and take profits should be displayed
	ShowLevels bool `json:"show_levels"`
}

// RunAnalysis runs an ORMCR analysis with the full parameter set
// POST /api/v1/analysis
func (h *AnalysisHandler) RunAnalysis(c *gin.Context) {
	var params models.AnalysisParams
	if err := c.ShouldBindJSON(&params); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.analysisService.Run(c.Request.Context(), middleware.GetKey(c), params)
	if err != nil {
		writeError(c, err, "analysis failed")
		return
	}

	response.Success(c, AnalysisResponse{AnalysisResult: result, ShowLevels: result.ShowLevels()})
}

// RegisterRoutes registers analysis routes
func (h *AnalysisHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.POST("/analysis", authMiddleware, h.RunAnalysis)
}
