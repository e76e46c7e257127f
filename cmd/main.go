package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sputnikchat/backend/internal/api/handler"
	"sputnikchat/backend/internal/chathub"
	"sputnikchat/backend/internal/config"
	"sputnikchat/backend/internal/models"
	"sputnikchat/backend/internal/storage"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Sputnik chat backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, rdb := setupDependencies(ctx, cfg)
	defer rdb.Close()
	s := storage.NewStorageService(db, rdb)

	opts := chathub.Options{}
	if cfg.ClusterBroadcast {
		opts.Bus = s
		log.Println("INFO: Cluster broadcast enabled")
	}
	hub := chathub.NewHub(s, opts)
	if err := hub.Start(ctx); err != nil {
		log.Fatalf("Failed to start chat hub: %v", err)
	}

	r := gin.Default()
	handler.NewHandler(hub, s, cfg.JWTSecret, cfg.TokenTTL).Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	log.Printf("INFO: Listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Println("INFO: Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	hub.Stop()
	log.Println("INFO: Stopped")
}
