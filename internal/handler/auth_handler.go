package handler

import (
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/pkg/response"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication API requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// SignInAnonymously issues a token for a fresh identity
// POST /api/v1/auth/anonymous
func (h *AuthHandler) SignInAnonymously(c *gin.Context) {
	token, err := h.authService.SignInAnonymously(c.Request.Context())
	if err != nil {
		response.InternalError(c, "failed to sign in")
		return
	}

	response.Success(c, token)
}

// SignInWithCustomToken exchanges a custom token for a session token.
// An invalid custom token yields an anonymous identity.
// POST /api/v1/auth/token
func (h *AuthHandler) SignInWithCustomToken(c *gin.Context) {
	var req service.CustomTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := h.authService.SignInWithCustomToken(c.Request.Context(), req.Token)
	if err != nil {
		response.InternalError(c, "failed to sign in")
		return
	}

	response.Success(c, token)
}

// RefreshToken handles token refresh
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := h.authService.RefreshToken(c.Request.Context(), req.Token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	response.Success(c, token)
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/anonymous", h.SignInAnonymously)
		auth.POST("/token", h.SignInWithCustomToken)
		auth.POST("/refresh", h.RefreshToken)
	}
}
