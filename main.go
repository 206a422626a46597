package main

import (
	"context"
	"log"
	"os"

	"counselgo/internal/api"
	"counselgo/internal/config"
	"counselgo/internal/redis"
	"counselgo/internal/service/ai"
	"counselgo/internal/service/practice"
	"counselgo/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("COUNSELGO_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("COUNSELGO_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: students, sessions, messages
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// Redis only caches session lists; the service runs without it.
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, session list caching disabled: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	provider := os.Getenv("COUNSELGO_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	generator, err := ai.NewPersonaService(context.Background(), provider, cfg)
	if err != nil {
		log.Fatalf("init persona generator: %v", err)
	}

	practiceService := practice.NewService(db, dbType)
	handlers := api.NewHandler(practiceService, generator, rdb)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
