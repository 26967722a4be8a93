package handler

import (
	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/repository"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// writeError maps service and store errors to API responses
func writeError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrNotReady):
		response.NotReady(c, "service not ready")
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidTrade):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrConfirmationRequired):
		response.Conflict(c, err.Error())
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrTradeLogNotFound),
		errors.Is(err, repository.ErrAudioNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, backend.ErrRequestFailed),
		errors.Is(err, backend.ErrMalformedResponse):
		response.BadGateway(c, backend.Reason(err))
	default:
		response.InternalError(c, fallback)
	}
}
