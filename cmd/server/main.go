package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"roomchat/internal/api"
	"roomchat/internal/auth"
	"roomchat/internal/chat"
	"roomchat/internal/config"
	"roomchat/internal/database"
	"roomchat/internal/handlers"
	"roomchat/internal/models"
	"roomchat/internal/services"
	"roomchat/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.Server.Env, cfg.Log.Level)

	if err := run(cfg); err != nil {
		logger.Error("Server stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// run returns instead of exiting so deferred cleanup always runs.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, storeName, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Initialize services
	authService := auth.NewService(cfg)
	coordinator := chat.New(authService, db, chat.Options{
		HistoryCap:       cfg.Chat.HistoryCap,
		TypingTimeout:    cfg.Chat.TypingTimeout,
		VerifyTimeout:    cfg.Chat.VerifyTimeout,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		ArchiveQueue:     cfg.Chat.ArchiveQueue,
	})
	if err := coordinator.Restore(ctx, seedRooms(cfg)); err != nil {
		shutdownErr := coordinator.Shutdown(context.Background())
		return errors.Join(fmt.Errorf("restore rooms: %w", err), shutdownErr)
	}
	roomService := services.NewRoomService(coordinator, db)

	// Initialize handlers
	router := api.NewRouter(logger.Z(), api.Handlers{
		Rooms:     handlers.NewRoomHandlers(roomService),
		Health:    handlers.NewHealthHandlers(db, storeName, coordinator.Connections),
		WebSocket: handlers.NewWebSocketHandlers(ctx, coordinator, authService, cfg.Server.AllowedOrigins),
		Verifier:  authService,
	}, cfg.Server.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("🚀 Server started on http://localhost%s (store: %s)", cfg.Server.Port, storeName)
		logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Wait for interrupt signal to gracefully shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by the server, so
		// the coordinator closes them after the listener stops.
		httpErr := server.Shutdown(shutdownCtx)
		chatErr := coordinator.Shutdown(shutdownCtx)
		return errors.Join(httpErr, chatErr)
	})

	return g.Wait()
}

// openDatabase picks the store: Postgres when DATABASE_URL is set, else
// Redis when REDIS_URL is set, else an in-memory store.
func openDatabase(ctx context.Context, cfg *config.Config) (database.Database, string, error) {
	switch {
	case cfg.Database.URL != "":
		db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
		if err != nil {
			return nil, "", err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, "", err
		}
		return db, "postgres", nil
	case cfg.Database.RedisURL != "":
		db, err := database.NewRedisDB(ctx, cfg.Database.RedisURL, database.DefaultRetention)
		if err != nil {
			return nil, "", err
		}
		return db, "redis", nil
	default:
		logger.Warn("No DATABASE_URL or REDIS_URL set, messages will not survive a restart")
		return database.NewMemoryDB(), "memory", nil
	}
}

func seedRooms(cfg *config.Config) []models.RoomInfo {
	seeds := make([]models.RoomInfo, 0, len(cfg.Chat.SeedRooms))
	for _, s := range cfg.Chat.SeedRooms {
		seeds = append(seeds, models.RoomInfo{Name: s.Name, Description: s.Description})
	}
	return seeds
}
