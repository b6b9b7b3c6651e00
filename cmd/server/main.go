package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/mvargas/tender-scout/internal/ai"
	"github.com/mvargas/tender-scout/internal/api"
	"github.com/mvargas/tender-scout/internal/db"
	"github.com/mvargas/tender-scout/internal/logger"
	"github.com/mvargas/tender-scout/internal/secop"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	lg, err := logger.New(os.Getenv("LOG_JSON") == "true", os.Getenv("LOG_DEBUG") == "true")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		lg.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, lg); err != nil {
		lg.Fatal("Migration failed", zap.Error(err))
	}

	store := db.NewStore(pool)
	engine, err := ai.NewEngine(ctx, ai.Config{APIKey: os.Getenv("GEMINI_API_KEY")}, store.UsageRecorder(), lg)
	if err != nil {
		lg.Fatal("Failed to initialize AI engine", zap.Error(err))
	}

	reg, err := secop.LoadRegistry("")
	if err != nil {
		lg.Fatal("Failed to load source registry", zap.Error(err))
	}
	sourceID := os.Getenv("SECOP_SOURCE")
	if sourceID == "" {
		sourceID = "secop2"
	}
	cfg, err := reg.Find(sourceID)
	if err != nil {
		lg.Fatal("Unknown tender source", zap.String("source", sourceID), zap.Error(err))
	}
	source := secop.NewClient(*cfg, lg)

	srv := api.NewServer(pool, engine, source, lg)
	lg.Info("Server starting", zap.String("port", port), zap.String("source", sourceID))
	if err := srv.Start(port); err != nil {
		lg.Fatal("Server stopped", zap.Error(err))
	}
}
