package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/config"
	"github.com/cadueduardo/MAF/internal/crawler"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
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

	rootURL := cfg.Crawler.RootURL
	if args := flag.Args(); len(args) > 0 {
		rootURL = args[0]
	}
	if rootURL == "" {
		fmt.Println("Usage: maf-crawl [--config=config.yaml] https://example.com")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	c := crawler.New(sugar, crawler.WithMaxPages(cfg.Crawler.MaxPages))
	written, err := c.Run(context.Background(), rootURL, cfg.Crawler.OutputDir)
	if err != nil {
		sugar.Fatalw("crawl failed", "error", err)
	}
	sugar.Infow("done", "pages", written, "dir", cfg.Crawler.OutputDir)
}
