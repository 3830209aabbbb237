// Command voxstudy-server runs the study assistant HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxstudy/voxstudy/pkg/ai"
	"github.com/voxstudy/voxstudy/pkg/rag"
	"github.com/voxstudy/voxstudy/pkg/server"
	"github.com/voxstudy/voxstudy/pkg/server/config"
	"github.com/voxstudy/voxstudy/pkg/speech/stt"
	"github.com/voxstudy/voxstudy/pkg/speech/tts"
	"github.com/voxstudy/voxstudy/pkg/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "voxstudy-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Missing .env files are fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	knowledge, err := buildKnowledge(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	chain, err := buildChain(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sttProvider := stt.NewAssemblyAI(cfg.AssemblyAIAPIKey)
	ttsProvider := tts.NewGoogle(cfg.GoogleTTSAPIKey)
	if sttProvider == nil {
		logger.Warn("ASSEMBLYAI_API_KEY not set, transcription disabled")
	}
	if ttsProvider == nil {
		logger.Warn("GOOGLE_TTS_API_KEY not set, speech synthesis disabled")
	}

	deps := server.Deps{
		Store:     db,
		AI:        chain,
		Knowledge: knowledge,
		Logger:    logger,
	}
	if sttProvider != nil {
		deps.STT = sttProvider
		deps.RealtimeSTT = func() (*stt.RealtimeSession, error) {
			return stt.DialRealtime(stt.RealtimeConfig{
				APIKey: cfg.AssemblyAIAPIKey,
				Logger: logger,
			})
		}
	}
	if ttsProvider != nil {
		deps.TTS = ttsProvider
	}

	srv := server.New(cfg, deps)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}

	logger.Info("starting server", "addr", cfg.Addr)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildKnowledge seeds the knowledge base on first start and indexes every
// stored document in memory.
func buildKnowledge(ctx context.Context, cfg config.Config, db *store.Store, logger *slog.Logger) (*rag.Service, error) {
	embedder := rag.NewCohereEmbedder(cfg.CohereAPIKey)
	if embedder == nil {
		logger.Warn("COHERE_API_KEY not set, knowledge retrieval disabled")
		return nil, nil
	}

	items, err := db.ListKnowledge(ctx)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	if len(items) == 0 {
		for _, doc := range rag.DefaultKnowledge() {
			id, err := db.AddKnowledge(ctx, store.KnowledgeItem{
				Title:    doc.Title,
				Content:  doc.Content,
				Category: doc.Category,
			})
			if err != nil {
				return nil, fmt.Errorf("seed knowledge base: %w", err)
			}
			items = append(items, store.KnowledgeItem{
				ID: id, Title: doc.Title, Content: doc.Content, Category: doc.Category,
			})
		}
		logger.Info("seeded default knowledge base", "documents", len(items))
	}

	index := rag.NewIndex(embedder)
	docs := make([]rag.Document, len(items))
	for i, item := range items {
		docs[i] = rag.Document{
			ID:        item.ID,
			Title:     item.Title,
			Content:   item.Content,
			Category:  item.Category,
			SourceURL: item.SourceURL,
			Embedding: item.Embedding,
		}
	}
	added, err := index.Add(ctx, docs...)
	if err != nil {
		// The server can still chat without retrieval.
		logger.Warn("knowledge indexing failed, retrieval disabled", "error", err)
		return nil, nil
	}
	for i, item := range items {
		if len(item.Embedding) == 0 && len(added[i].Embedding) > 0 {
			if err := db.SetEmbedding(ctx, item.ID, added[i].Embedding); err != nil {
				logger.Warn("embedding cache write failed", "error", err, "id", item.ID)
			}
		}
	}
	logger.Info("knowledge base indexed", "documents", index.Len())
	return rag.NewService(index, logger), nil
}

func buildChain(ctx context.Context, cfg config.Config, logger *slog.Logger) (*ai.Chain, error) {
	gemini, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, "")
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}

	var providers []ai.Provider
	if p := ai.NewTogether(cfg.TogetherAPIKey); p != nil {
		providers = append(providers, p)
	}
	if p := ai.NewCohere(cfg.CohereAPIKey); p != nil {
		providers = append(providers, p)
	}
	if gemini != nil {
		providers = append(providers, gemini)
	}
	if len(providers) == 0 {
		logger.Warn("no AI provider keys set, chat will return fallback responses")
	}
	return ai.NewChain(logger, providers...), nil
}
