package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/atlasbio/meridian/internal/cache"
	"github.com/atlasbio/meridian/internal/config"
	"github.com/atlasbio/meridian/internal/llm"
	"github.com/atlasbio/meridian/internal/logger"
	"github.com/atlasbio/meridian/internal/mirror"
	"github.com/atlasbio/meridian/internal/pipeline"
	"github.com/atlasbio/meridian/internal/server"
	"github.com/atlasbio/meridian/internal/sources"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		lg.Warn("llm client unavailable, running without extraction and refinement", "error", err)
		llmClient = nil
	}

	store := cache.New(lg, cfg.Cache.RedisAddr)
	catalog := sources.NewCatalog(lg, store, cfg.Sources)

	var sink pipeline.PatchSink
	if cfg.Mirror.URI != "" {
		driver, err := mirror.NewMemgraphDriver(ctx, cfg.Mirror.URI, cfg.Mirror.User, cfg.Mirror.Password)
		if err != nil {
			lg.Warn("graph mirror unavailable", "uri", cfg.Mirror.URI, "error", err)
		} else {
			defer driver.Close(ctx)
			m := mirror.New(lg, driver)
			m.EnsureIndices(ctx)
			sink = m
		}
	}

	orchestrator := pipeline.NewOrchestrator(lg, cfg, catalog, llmClient, sink)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := server.New(lg, orchestrator)
	r := srv.SetupRouter()

	lg.Info("starting server", "port", port)
	if err := r.Run(":" + port); err != nil {
		lg.Fatal("server exited", "error", err)
	}
}
