package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/auth"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/config"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/db"
	httphandler "github.com/manethdewpura/SparkPoint-Server-sub001/internal/http"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/http/handlers"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/middleware"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	ownerRepo := repo.NewOwnerRepo(database)
	tokenRepo := repo.NewRefreshTokenRepo(database)

	// Auth core
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	ledger := auth.NewRefreshTokenLedger(tokenRepo, cfg.RefreshTokenTTL)
	authService := auth.NewAuthService(userRepo, ownerRepo, ledger, jwtService)

	// Background token cleanup
	cleanupWorker := auth.NewCleanupWorker(authService, cfg.CleanupInterval)
	if err := cleanupWorker.Start(); err != nil {
		log.Fatalf("Failed to start cleanup worker: %v", err)
	}
	defer cleanupWorker.Stop()

	// HTTP surface
	limiter := middleware.NewRateLimiter(cfg.RateCounterRetention, cfg.RateCounterMaxEntries)
	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(authService)
	ownerHandler := handlers.NewOwnerHandler(ownerRepo)

	router := httphandler.NewRouter(cfg, authHandler, sessionHandler, ownerHandler, jwtService, ownerRepo, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	cleanupWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
