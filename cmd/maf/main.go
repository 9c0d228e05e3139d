package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/agent"
	"github.com/cadueduardo/MAF/internal/config"
	"github.com/cadueduardo/MAF/internal/index"
	"github.com/cadueduardo/MAF/internal/normalize"
	"github.com/cadueduardo/MAF/internal/provider"
	"github.com/cadueduardo/MAF/internal/server"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/maf/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, generator, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		sugar.Fatalw("provider init failed", "error", err)
	}

	// The listener comes up before the index is ready so early requests
	// get an explicit 503 instead of a connection refusal.
	srv := server.New(cfg.Server.AllowedOrigins, sugar)
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
	go func() {
		sugar.Infow("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	sheets, err := normalize.NewLoader(sugar).LoadDir(cfg.Data.Dir)
	if err != nil {
		sugar.Fatalw("loading documents failed", "dir", cfg.Data.Dir, "error", err)
	}
	sugar.Infow("documents loaded", "sheets", len(sheets))

	var store index.Store
	switch cfg.Index.Store {
	case "file", "":
		store = index.NewMemoryStore()
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			sugar.Fatalw("qdrant config missing")
		}
		store = index.NewQdrantStore(index.QdrantConfig{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		sugar.Fatalw("unknown index store", "store", cfg.Index.Store)
	}

	manager := index.NewManager(store, embedder, cfg.Index.Path, sugar,
		index.WithLockTimeout(time.Duration(cfg.Index.LockTimeoutSecs)*time.Second))
	if err := manager.LoadOrBuild(ctx, sheets); err != nil {
		sugar.Fatalw("index build failed", "error", err)
	}

	srv.SetService(agent.New(manager, generator, sugar))
	sugar.Infow("agent ready")

	<-ctx.Done()
	sugar.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("shutdown", "error", err)
	}
}
