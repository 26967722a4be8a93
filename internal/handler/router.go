package handler

import (
	"context"

	"github.com/aura-bot/internal/middleware"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/internal/workspace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the dependencies of the HTTP surface
type Services struct {
	Store    *store.Store
	Auth     *service.AuthService
	Sessions *service.SessionService
	Chat     *service.ChatService
	Analysis *service.AnalysisService
	TradeLog *service.TradeLogService
	Market   *service.MarketService
	Build    BuildInfo
}

// NewRouter wires every handler onto a gin engine. Workspaces opened over
// the WebSocket are cancelled when shutdown is done.
func NewRouter(shutdown context.Context, svcs Services, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	NewHealthHandler(svcs.Store, svcs.Market, svcs.Build).RegisterRoutes(router)

	authMiddleware := middleware.AuthMiddleware(svcs.Auth)

	v1 := router.Group("/api/v1")
	{
		// Auth routes (public)
		NewAuthHandler(svcs.Auth).RegisterRoutes(v1)

		// Market routes (public)
		NewMarketHandler(svcs.Market).RegisterRoutes(v1)

		// Protected routes
		NewSessionHandler(svcs.Sessions, svcs.Chat).RegisterRoutes(v1, authMiddleware)
		NewAnalysisHandler(svcs.Analysis).RegisterRoutes(v1, authMiddleware)
		NewTradeLogHandler(svcs.TradeLog).RegisterRoutes(v1, authMiddleware)
		NewMediaHandler(svcs.Store).RegisterRoutes(v1, authMiddleware)

		NewWSHandler(shutdown, workspace.Deps{
			Store:    svcs.Store,
			Sessions: svcs.Sessions,
			Chat:     svcs.Chat,
			Analysis: svcs.Analysis,
			Market:   svcs.Market,
			Logger:   logger,
		}, logger).RegisterRoutes(v1, authMiddleware)
	}

	return router
}
