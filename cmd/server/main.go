package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/config"
	"github.com/aura-bot/internal/handler"
	"github.com/aura-bot/internal/middleware"
	"github.com/aura-bot/internal/realtime"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "aura-bot",
		Short: "Aura trading dashboard server",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aura-bot %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	logger, err := middleware.NewLogger(cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer logger.Sync()

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	docs, err := initDocuments(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err))
		return err
	}

	// Redis is optional; without it change notifications stay in-process
	var rdb *redis.Client
	var broker realtime.Broker = realtime.NewLocalBroker()
	if cfg.Redis.Enabled {
		rdb = initRedis(cfg)
		broker = realtime.NewRedisBroker(rdb)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("error closing broker", zap.Error(err))
		}
	}()

	st := store.New(docs, broker, logger)
	backendClient := backend.NewClient(cfg.Backend, logger)

	// Initialize services
	sessionService := service.NewSessionService(st, logger)
	analysisService := service.NewAnalysisService(st, sessionService, backendClient, logger)
	chatService := service.NewChatService(st, sessionService, analysisService, backendClient, logger)
	marketService := service.NewMarketService(backendClient, broker, rdb, logger)
	tradeLogService := service.NewTradeLogService(st, logger)
	authService := service.NewAuthService(st, cfg.App.AppID, cfg.JWT, logger)

	shutdownCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	// Serve the last cached prices until the first live refresh lands
	if marketService.Restore(shutdownCtx) {
		logger.Info("restored cached market snapshot")
	}
	poller := worker.NewMarketPoller(marketService, cfg.Market.RefreshInterval, logger)
	go poller.Start(shutdownCtx)

	router := handler.NewRouter(shutdownCtx, handler.Services{
		Store:    st,
		Auth:     authService,
		Sessions: sessionService,
		Chat:     chatService,
		Analysis: analysisService,
		TradeLog: tradeLogService,
		Market:   marketService,
		Build:    handler.BuildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime},
	}, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
		shutdown()
		poller.Stop()
		return err
	}

	logger.Info("shutting down server")

	// Close open workspaces and stop polling before draining requests
	shutdown()
	poller.Stop()
	<-poller.Done()

	// Graceful shutdown with 10 second timeout
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("server exited properly")
	return nil
}

func migrate() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if cfg.Database.Driver != "postgres" {
		return errors.Errorf("migrate requires the postgres driver, got %q", cfg.Database.Driver)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	if err := store.AutoMigrate(db); err != nil {
		return errors.Wrap(err, "migrate database")
	}
	fmt.Println("database schema is up to date")
	return nil
}

func initDocuments(cfg *config.Config, logger *zap.Logger) (store.Documents, error) {
	switch cfg.Database.Driver {
	case "memory", "":
		logger.Warn("using in-memory documents; data is lost on restart")
		return store.NewMemoryDocuments(), nil
	case "postgres":
		db, err := initDatabase(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.AutoMigrate(db); err != nil {
			return nil, errors.Wrap(err, "migrate database")
		}
		return store.NewGormDocuments(db), nil
	default:
		return nil, errors.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
