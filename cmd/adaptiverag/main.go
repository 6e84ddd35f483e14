// Command adaptiverag serves the adaptive RAG pipeline over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/0xcro3dile/adaptiverag-go/internal/adapters/classifier"
	"github.com/0xcro3dile/adaptiverag-go/internal/adapters/embedding"
	"github.com/0xcro3dile/adaptiverag-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/adaptiverag-go/internal/adapters/llm"
	"github.com/0xcro3dile/adaptiverag-go/internal/adapters/loader"
	"github.com/0xcro3dile/adaptiverag-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/usecases"
	"github.com/0xcro3dile/adaptiverag-go/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/adaptiverag-go/internal/infrastructure/http"
	"github.com/0xcro3dile/adaptiverag-go/internal/prompts"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promptBuilder, err := prompts.New()
	if err != nil {
		return err
	}

	embedder := embedding.NewOllamaAdapter(cfg.Embedding.OllamaURL, cfg.Embedding.Model, logger)

	store, err := vectordb.NewSQLiteStore(cfg.KB.DataPath, embedder)
	if err != nil {
		return err
	}
	defer store.Close()

	var generator ports.Generator
	switch cfg.LLM.Provider {
	case "gemini":
		generator, err = llm.NewGeminiGenerator(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.Model)
		if err != nil {
			return err
		}
	default:
		generator = llm.NewOllamaGenerator(cfg.LLM.OllamaURL, cfg.LLM.Model, cfg.LLM.Timeout())
	}

	chunkLoader := loader.NewChunkLoader(embedder, store, logger)
	if _, err := os.Stat(cfg.KB.ChunkMetaPath); err == nil {
		if n, err := chunkLoader.Load(ctx, cfg.KB.ChunkMetaPath); err != nil {
			logger.Warn("initial chunk load failed", zap.Error(err))
		} else {
			logger.Info("chunk index ready", zap.Int("chunks", n))
		}
	} else {
		logger.Warn("chunk metadata not found, starting with existing index",
			zap.String("path", cfg.KB.ChunkMetaPath))
	}

	if cfg.KB.Watch {
		if err := watchChunkMeta(ctx, cfg.KB.ChunkMetaPath, chunkLoader, logger); err != nil {
			logger.Warn("chunk metadata watch unavailable", zap.Error(err))
		}
	}

	profile, err := usecases.ProfileForSize(cfg.KB.Size)
	if err != nil {
		return err
	}
	logger.Info("knowledge base profile",
		zap.String("size", profile.Size),
		zap.Int("top_k", profile.DefaultTopK),
		zap.Bool("filter_enabled", profile.FilterEnabled))

	orchestrator := usecases.NewOrchestrator(
		classifier.NewLLMClassifier(generator, promptBuilder, logger),
		store,
		generator,
		promptBuilder,
		usecases.Options{
			Profile:          profile,
			UseDecomposition: cfg.Pipeline.Decomposition,
			UseEvaluation:    cfg.Pipeline.Evaluation,
			CitationPattern:  cfg.CitationRegexp(),
		},
		logger,
	)

	server := httpserver.NewServer(orchestrator, cfg.Server.Addr, logger)
	return server.Start(ctx)
}

// watchChunkMeta reloads the chunk index whenever the metadata file is
// rewritten.
func watchChunkMeta(ctx context.Context, path string, chunkLoader *loader.ChunkLoader, logger *zap.Logger) error {
	watcher, err := filewatcher.NewFSNotifyWatcher([]string{".json"})
	if err != nil {
		return err
	}

	events, err := watcher.Watch(ctx, path)
	if err != nil {
		watcher.Stop()
		return err
	}

	go func() {
		defer watcher.Stop()
		for event := range events {
			if event.Path != path || event.Operation == ports.FileDeleted {
				continue
			}
			logger.Info("chunk metadata changed, reloading", zap.String("path", event.Path))
			if _, err := chunkLoader.Load(ctx, path); err != nil {
				logger.Error("chunk reload failed", zap.Error(err))
			}
		}
	}()
	return nil
}
