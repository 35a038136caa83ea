// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aetherlink/engram/internal/config"
	"github.com/aetherlink/engram/internal/database"
	"github.com/aetherlink/engram/internal/embeddings"
	"github.com/aetherlink/engram/internal/llm"
	"github.com/aetherlink/engram/internal/memory"
	"github.com/aetherlink/engram/internal/pipeline"
	"github.com/aetherlink/engram/internal/processor"
	"github.com/aetherlink/engram/internal/server"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"gorm.io/gorm/logger"
)

// Version is set at build time via ldflags (e.g. -X main.Version={{.Version}}).
var Version string

func main() {
	// CRITICAL: MCP servers must ONLY output JSON-RPC to stdout
	// Redirect all logging to stderr
	log.SetOutput(os.Stderr)

	configPath := flag.String("config", "", "Path to config file")
	dbType := flag.String("db-type", "", "Database type (sqlite or postgres)")
	dbPath := flag.String("db-path", "", "Database path (for sqlite)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (for postgres)")
	exportPath := flag.String("export", "", "Export memories to a YAML file and exit")
	importPath := flag.String("import", "", "Import memories from a YAML file and exit")
	assistantID := flag.String("assistant", "", "Assistant partition for --export (default: all)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Engram Memory Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Server Mode:\n")
		fmt.Fprintf(os.Stderr, "  %s                     Start MCP server (stdio)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMaintenance:\n")
		fmt.Fprintf(os.Stderr, "  %s --export <file>     Dump memories as YAML\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --import <file>     Load memories from a YAML dump\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  ENGRAM_DB_TYPE     Database type (sqlite or postgres)\n")
		fmt.Fprintf(os.Stderr, "  ENGRAM_DB_PATH     SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  ENGRAM_DB_DSN      PostgreSQL connection string\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY     API key for chat and embedding models\n")
	}

	flag.Parse()

	if *exportPath != "" && *importPath != "" {
		log.Fatal("ERROR: --export and --import cannot be used together")
	}

	log.Println("Starting Engram Memory Server...")

	// Load configuration
	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", *configPath, err)
		}
		log.Printf("Loaded configuration from %s", *configPath)
	} else {
		cfg, err = config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		log.Printf("Loaded configuration from ~/%s", config.DefaultConfigDir)
	}

	applyEnvOverrides(cfg)
	applyCLIOverrides(cfg, *dbType, *dbPath, *dbDSN)

	log.Printf("Configuration: database=%s", cfg.Database.Type)

	// Connect database
	db, err := database.Connect(&database.Config{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
		LogLevel:    logger.Silent, // CRITICAL: Silence GORM stdout output for MCP
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	log.Printf("Connected to database: %s", cfg.Database.Type)

	if err := memory.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Build the embedding client
	embedder := buildEmbedder(cfg)
	store := memory.NewStore(db, embedder, memory.Options{
		DedupThreshold: cfg.Memory.DedupThreshold,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	proc := buildProcessor(cfg, store)
	pl := pipeline.New(store, proc, cfg)
	defer pl.Close()

	// MAINTENANCE MODE: export or import and exit
	if *exportPath != "" {
		runExport(store, *exportPath, *assistantID)
		return
	}
	if *importPath != "" {
		runImport(store, *importPath)
		return
	}

	// SERVER MODE
	mcpSrv := server.NewMCPServer(cfg, store, proc, pl)

	if cfg.Memory.MemoryToolEnabled {
		log.Println("MCP server ready (stdio mode) - 7 tools registered")
	} else {
		log.Println("MCP server ready (stdio mode) - memory tools disabled")
	}
	if embedder != nil {
		log.Printf("Semantic search enabled (model: %s)", cfg.Embedding.Model)
	} else {
		log.Println("No embedding model configured; memory writes will fail until one is set")
	}

	if err := mcpserver.ServeStdio(mcpSrv.GetMCPServer()); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

// buildEmbedder creates the embedding client from configuration, wrapped
// in a cache. Nil when no embedding model is configured.
func buildEmbedder(cfg *config.Config) embeddings.Client {
	if !cfg.EmbeddingConfigured() {
		return nil
	}

	apiKey := config.APIKey(cfg.Embedding.APIKeyEnv)
	if apiKey == "" {
		log.Printf("Warning: %s is not set; embedding calls will fail", cfg.Embedding.APIKeyEnv)
	}

	var client embeddings.Client = embeddings.NewOpenAIClient(
		cfg.Embedding.BaseURL, apiKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)

	cached, err := embeddings.NewCachingClient(client, int64(cfg.Embedding.CacheEntries))
	if err != nil {
		log.Printf("Warning: embedding cache unavailable: %v", err)
		return client
	}
	return cached
}

// buildProcessor creates the fact extraction processor. Nil when no
// chat model is configured.
func buildProcessor(cfg *config.Config, store *memory.Store) *processor.Processor {
	if !cfg.LLMConfigured() {
		return nil
	}

	apiKey := config.APIKey(cfg.LLM.APIKeyEnv)
	if apiKey == "" {
		log.Printf("Warning: %s is not set; fact extraction will fail", cfg.LLM.APIKeyEnv)
	}

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, apiKey, cfg.LLM.Model)
	return processor.NewProcessor(store, client, processor.Options{
		CustomFactPrompt: cfg.Memory.CustomFactPrompt,
	})
}

func runExport(store *memory.Store, path, assistantID string) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create export file: %v", err)
	}
	defer f.Close()

	if err := store.Export(context.Background(), f, assistantID); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.Printf("Exported memories to %s", path)
}

func runImport(store *memory.Store, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open import file: %v", err)
	}
	defer f.Close()

	stats, err := store.Import(context.Background(), f)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Import completed: %d imported, %d skipped, %d failed",
		stats.Imported, stats.Skipped, stats.Failed)
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *config.Config) {
	if dbType := os.Getenv("ENGRAM_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from ENV: %s", dbType)
	}
	if dbPath := os.Getenv("ENGRAM_DB_PATH"); dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from ENV")
	}
	if dbDSN := os.Getenv("ENGRAM_DB_DSN"); dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from ENV (hidden)")
	}
}

// applyCLIOverrides applies command-line flag overrides to configuration
func applyCLIOverrides(cfg *config.Config, dbType, dbPath, dbDSN string) {
	if dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from CLI: %s", dbType)
	}
	if dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from CLI")
	}
	if dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from CLI (hidden)")
	}
}
