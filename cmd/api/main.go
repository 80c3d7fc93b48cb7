package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xelth-com/reg44go/internal/ai"
	"github.com/xelth-com/reg44go/internal/config"
	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/handlers"
	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/logging"
	"github.com/xelth-com/reg44go/internal/middleware"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/session"
	"github.com/xelth-com/reg44go/internal/sync"
	"github.com/xelth-com/reg44go/internal/utils"
	"github.com/xelth-com/reg44go/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, flush, err := logging.Install(cfg.Log)
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("Failed to build logger", zap.Error(err))
	}
	defer flush()

	identity, err := utils.LoadOrCreateDeviceIdentity(cfg.StateDir, cfg.InstanceID)
	if err != nil {
		logger.Fatal("Failed to load device identity", zap.Error(err))
	}

	// 2. Remote store (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	// Note: db.Close() is called manually in shutdown below

	// 3. Device-local store
	local, err := database.OpenLocal(cfg.Local.Path)
	if err != nil {
		logger.Fatal("Failed to open local store", zap.Error(err))
	}

	logger.Info("🚀 Synchronizing database schema...")
	if err := db.AutoMigrate(models.RemoteModels()...); err != nil {
		logger.Warn("⚠️ Migration warning", zap.Error(err))
	} else {
		logger.Info("✅ Schema synchronized successfully")
	}
	if err := local.AutoMigrate(models.LocalModels()...); err != nil {
		logger.Fatal("Failed to migrate local store", zap.Error(err))
	}

	// 4. Sync engine
	store := localstore.New(local, cfg.Autosave.VersionLimit)
	outbox := sync.NewOutbox(local, identity.DeviceID)
	syncEngine := sync.NewSyncEngine(db, store, outbox, cfg.Sync, identity.DeviceID)
	if err := syncEngine.Start(); err != nil {
		logger.Warn("⚠️ Sync Engine: Failed to start", zap.Error(err))
	}

	// 5. Realtime hub and editing sessions
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	sessions := session.NewManager(db, store, syncEngine, hub, cfg.Autosave.Interval)

	// 6. Narrative polishing (optional)
	var generator ai.Generator
	if cfg.AI.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(context.Background(), cfg.AI.GeminiAPIKey, cfg.AI.Model, ai.SummarySystemPrompt)
		if err != nil {
			logger.Warn("⚠️ AI: Gemini unavailable, using template summaries", zap.Error(err))
		} else {
			defer gemini.Close()
			generator = gemini
			logger.Info("✅ AI: Gemini summaries enabled", zap.String("model", cfg.AI.Model))
		}
	}
	summarizer := ai.NewSummarizer(generator, cfg.AI.Timeout)

	// 7. HTTP router
	router := handlers.NewRouter(handlers.Dependencies{
		Config:     cfg,
		DB:         db,
		Store:      store,
		Engine:     syncEngine,
		Sessions:   sessions,
		Hub:        hub,
		Summarizer: summarizer,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CaseInsensitiveMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("🚀 Server starting", zap.String("port", cfg.Port), zap.String("device", identity.DeviceID))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	logger.Info("⚠️ Shutting down gracefully...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Flush open reports to the local store before anything else closes
	if err := sessions.Shutdown(ctx); err != nil {
		logger.Error("Session flush error", zap.Error(err))
	}

	syncEngine.Stop()
	stopHub()
	<-hub.Done()

	if err := local.Close(); err != nil {
		logger.Error("Local store close error", zap.Error(err))
	}
	// Close database (this also stops embedded PostgreSQL)
	logger.Info("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error("Database close error", zap.Error(err))
	}

	logger.Info("✅ Shutdown complete")
}
