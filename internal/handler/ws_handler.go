package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aura-bot/internal/middleware"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/internal/workspace"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 45 * time.Second
	wsMaxMessage = 16 << 20
	wsOutBuffer  = 256
)

// WSHandler serves the dashboard WebSocket. Every connection owns one
// workspace for the lifetime of the connection.
type WSHandler struct {
	deps     workspace.Deps
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// shutdown is closed when the server stops accepting work
	shutdown context.Context
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(shutdown context.Context, deps workspace.Deps, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		deps:     deps,
		logger:   logger,
		shutdown: shutdown,
		upgrader: websocket.Upgrader{
			CheckOrigin:       func(*http.Request) bool { return true },
			EnableCompression: true,
		},
	}
}

// wsConn is the outbound side of one dashboard connection
type wsConn struct {
	conn     *websocket.Conn
	out      chan workspace.Event
	overflow chan struct{}
	once     sync.Once
}

// emit queues an event without blocking. A client that cannot keep up is
// disconnected rather than stalling its workspace.
func (c *wsConn) emit(e workspace.Event) {
	select {
	case c.out <- e:
	default:
		c.once.Do(func() { close(c.overflow) })
	}
}

// Serve upgrades the request and runs the workspace protocol
// GET /api/v1/ws?token=...
func (h *WSHandler) Serve(c *gin.Context) {
	key := middleware.GetKey(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	wc := &wsConn{
		conn:     conn,
		out:      make(chan workspace.Event, wsOutBuffer),
		overflow: make(chan struct{}),
	}
	ws := workspace.New(h.shutdown, h.deps, wc.emit)

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go h.writeLoop(wc, done, writerDone)

	logger := h.logger.With(zap.String("user_id", key.UserID))
	logger.Info("dashboard connected")

	if err := ws.Start(); err != nil {
		logger.Warn("workspace start failed", zap.Error(err))
	}
	ws.SetIdentity(key, true)

	h.readLoop(conn, ws, logger)

	ws.Close()
	close(done)
	<-writerDone
	logger.Info("dashboard disconnected")
}

func (h *WSHandler) readLoop(conn *websocket.Conn, ws *workspace.Workspace, logger *zap.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var cmd workspace.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			ws.Alert(service.Alert{Level: service.AlertWarning, Message: "Malformed command."})
			continue
		}

		if err := ws.Dispatch(h.shutdown, cmd); err != nil {
			// not-ready conditions have already been surfaced by the workspace
			if errors.Is(err, service.ErrNotReady) || errors.Is(err, workspace.ErrClosed) {
				continue
			}
			logger.Debug("command rejected", zap.String("type", cmd.Type), zap.Error(err))
			ws.Alert(service.Alert{Level: service.AlertWarning, Message: err.Error()})
		}
	}
}

func (h *WSHandler) writeLoop(wc *wsConn, done <-chan struct{}, writerDone chan<- struct{}) {
	defer close(writerDone)
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case e := <-wc.out:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wc.conn.WriteJSON(e); err != nil {
				_ = wc.conn.Close()
				return
			}
		case <-ping.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = wc.conn.Close()
				return
			}
		case <-wc.overflow:
			h.logger.Warn("dashboard too slow, closing connection")
			_ = wc.conn.Close()
			return
		case <-done:
			_ = wc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

// RegisterRoutes registers the WebSocket route
func (h *WSHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.GET("/ws", authMiddleware, h.Serve)
}
