package handler

import (
	"io"
	"net/http"

	"github.com/aura-bot/internal/middleware"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/pkg/response"
	"github.com/gin-gonic/gin"
)

// maxAudioBytes bounds an uploaded voice message
const maxAudioBytes = 10 << 20

// SessionHandler handles chat session and message API requests
type SessionHandler struct {
	sessionService *service.SessionService
	chatService    *service.ChatService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessionService *service.SessionService, chatService *service.ChatService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		chatService:    chatService,
	}
}

// ListSessions returns the user's sessions, newest first
// GET /api/v1/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessionService.ListSessions(c.Request.Context(), middleware.GetKey(c))
	if err != nil {
		writeError(c, err, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}

	response.SuccessList(c, sessions, len(sessions))
}

// CreateSession creates a session with its greeting
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	session, err := h.sessionService.CreateSession(c.Request.Context(), middleware.GetKey(c))
	if err != nil {
		writeError(c, err, "failed to create session")
		return
	}

	response.Created(c, session)
}

// ListMessages returns a session's messages in conversation order
// GET /api/v1/sessions/:id/messages
func (h *SessionHandler) ListMessages(c *gin.Context) {
	messages, err := h.sessionService.ListMessages(c.Request.Context(), middleware.GetKey(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	response.SuccessList(c, messages, len(messages))
}

// SendMessageRequest represents a text message
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SendMessageResponse reports a send and its side effects
type SendMessageResponse struct {
	*service.SendResult
	Alerts []service.Alert `json:"alerts,omitempty"`
	// LocalMessages were produced but could not be persisted
	LocalMessages []models.ChatMessage `json:"localMessages,omitempty"`
}

// SendMessage sends a user turn. A JSON body sends text; a multipart form
// with an "audio" file sends a voice message with an optional "text".
// POST /api/v1/sessions/:id/messages
func (h *SessionHandler) SendMessage(c *gin.Context) {
	req := service.SendRequest{
		Key:       middleware.GetKey(c),
		SessionID: c.Param("id"),
	}

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		file, header, err := c.Request.FormFile("audio")
		if err != nil {
			response.BadRequest(c, "audio file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxAudioBytes+1))
		if err != nil {
			response.BadRequest(c, "failed to read audio")
			return
		}
		if len(data) > maxAudioBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, -1, "audio too large")
			return
		}

		req.Voice = true
		req.Audio = data
		req.AudioContentType = header.Header.Get("Content-Type")
		req.Text = c.PostForm("text")
	} else {
		var body SendMessageRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.Text = body.Text
	}

	obs := service.NewCollector()
	result, err := h.chatService.SendMessage(c.Request.Context(), req, obs)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}

	response.Created(c, SendMessageResponse{
		SendResult:    result,
		Alerts:        obs.Alerts(),
		LocalMessages: obs.LocalMessages(),
	})
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	sessions := rg.Group("/sessions")
	sessions.Use(authMiddleware)
	{
		sessions.GET("", h.ListSessions)
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id/messages", h.ListMessages)
		sessions.POST("/:id/messages", h.SendMessage)
	}
}
