package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"bookrag/internal/app"
	"bookrag/internal/config"
	"bookrag/internal/ratelimit"
	"bookrag/internal/server"
	"bookrag/internal/util"
	"bookrag/pkg/ai"
	"bookrag/pkg/storage"
	"bookrag/pkg/store"
	"bookrag/pkg/vector"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
	if err != nil {
		util.Fatal("failed to init postgres store", "err", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init minio", "err", err)
		}
	} else {
		slog.Warn("no minio endpoint configured, raw book text kept in memory only")
		objects = storage.NewMemoryStore()
	}

	vectors, err := vector.New(vector.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		VectorDim:  cfg.EmbeddingDim,
	})
	if err != nil {
		util.Fatal("failed to init vector store", "err", err)
	}

	embedder := ai.ResolveEmbedder(ai.EmbedderConfig{
		OllamaBaseURL: cfg.OllamaURL,
		OllamaModel:   cfg.OllamaEmbedModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIEmbedModel,
		CohereAPIKey:  cfg.CohereAPIKey,
		CohereModel:   cfg.CohereEmbedModel,
		Dimensions:    cfg.EmbeddingDim,
	})
	generator := ai.ResolveGenerator(ai.GeneratorConfig{
		Provider:      cfg.GenerationProvider,
		OllamaBaseURL: cfg.OllamaURL,
		OllamaModel:   cfg.OllamaChatModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIChatModel,
		CohereAPIKey:  cfg.CohereAPIKey,
		CohereModel:   cfg.CohereChatModel,
		Temperature:   cfg.GenerationTemperature,
	})

	appCore, err := app.New(app.Config{
		Store:        dataStore,
		Objects:      objects,
		Vectors:      vectors,
		Embedder:     embedder,
		Generator:    generator,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.RetrievalTopK,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword,
		"bookrag:ratelimit", cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSeconds)*time.Second)
	if err != nil {
		util.Fatal("failed to init rate limiter", "err", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		util.Fatal("failed to parse trusted proxies", "err", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr,
		"embedding_backend", embedder.Backend(),
		"generation_backend", generator.Backend(),
		"vector_transport", vectors.Transport(),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
