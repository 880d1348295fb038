package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civiclens/avatar/internal/config"
	"github.com/civiclens/avatar/internal/engine"
	"github.com/civiclens/avatar/internal/index"
	"github.com/civiclens/avatar/internal/llm"
	"github.com/civiclens/avatar/internal/personality"
	"github.com/civiclens/avatar/internal/prompt"
	"github.com/civiclens/avatar/internal/server"
	"github.com/civiclens/avatar/internal/storage"
	"github.com/civiclens/avatar/internal/storage/postgres"
	"github.com/civiclens/avatar/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Chunk store backend for the persisted indexes.
	var opener storage.Opener
	switch cfg.Storage.StorageEngine {
	case "postgres":
		opener, err = postgres.NewOpener(cfg.Storage.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
	case "sqlite", "":
		opener = sqlite.NewOpener(cfg.Storage.IndexPath)
	default:
		log.Fatalf("Unknown storage engine %q", cfg.Storage.StorageEngine)
	}
	defer opener.Close()

	registry, err := personality.NewRegistryWithCatalog(cfg.Storage.PersonalitiesFile)
	if err != nil {
		log.Fatalf("Failed to load personality catalog: %v", err)
	}

	generator, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create text generator: %v", err)
	}
	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create embedding generator: %v", err)
	}

	manager := index.NewManager(opener, embedder, cfg.Storage.DocumentPath)
	assembler := prompt.NewAssembler(registry, prompt.FilePrinciplesLookup(cfg.Storage.PrinciplesPath))
	pool := engine.NewSessionPool(manager, assembler, generator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _ := server.Start(ctx, cfg, registry, pool)
	log.Printf("Avatar backend running at http://%s (model: %s)", addr, generator.GetModel())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
