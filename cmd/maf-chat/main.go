package main

import (
	"context"
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/agent"
	"github.com/cadueduardo/MAF/internal/config"
	"github.com/cadueduardo/MAF/internal/index"
	"github.com/cadueduardo/MAF/internal/normalize"
	"github.com/cadueduardo/MAF/internal/provider"
	"github.com/cadueduardo/MAF/internal/tui"
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

	// The TUI owns the terminal, so logs go to a file instead of stderr.
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"maf-chat.log"}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	embedder, generator, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		log.Fatalf("provider init failed: %v", err)
	}

	sheets, err := normalize.NewLoader(sugar).LoadDir(cfg.Data.Dir)
	if err != nil {
		log.Fatalf("loading documents failed: %v", err)
	}

	var store index.Store
	switch cfg.Index.Store {
	case "file", "":
		store = index.NewMemoryStore()
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		store = index.NewQdrantStore(index.QdrantConfig{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown index store: %s", cfg.Index.Store)
	}

	manager := index.NewManager(store, embedder, cfg.Index.Path, sugar,
		index.WithLockTimeout(time.Duration(cfg.Index.LockTimeoutSecs)*time.Second))
	if err := manager.LoadOrBuild(ctx, sheets); err != nil {
		log.Fatalf("index build failed: %v", err)
	}

	a := agent.New(manager, generator, sugar)
	m := tui.New(a, a.Suggest(ctx))
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
