// Package provider assembles the configured model provider family. Two
// families are supported: openai (default) and google. Embedding normally
// comes from the same family as generation; the embedder override swaps in
// the local tfidf vectorizer for offline development.
package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cadueduardo/MAF/internal/config"
	"github.com/cadueduardo/MAF/internal/domain"
	"github.com/cadueduardo/MAF/internal/provider/google"
	"github.com/cadueduardo/MAF/internal/provider/openai"
	"github.com/cadueduardo/MAF/internal/provider/tfidf"
)

// New builds the embedder and generator selected by cfg. API keys are
// resolved from the environment variable each family names.
func New(ctx context.Context, cfg config.ProviderConfig) (domain.Embedder, domain.Generator, error) {
	switch cfg.Type {
	case "openai", "":
		if cfg.OpenAI == nil {
			return nil, nil, fmt.Errorf("openai provider config missing")
		}
		key := os.Getenv(cfg.OpenAI.APIKeyEnv)
		if key == "" {
			return nil, nil, fmt.Errorf("missing API key in env %s", cfg.OpenAI.APIKeyEnv)
		}
		client, err := openai.New(openai.Config{
			APIKey:     key,
			BaseURL:    cfg.OpenAI.BaseURL,
			ChatModel:  cfg.OpenAI.ChatModel,
			EmbedModel: cfg.OpenAI.EmbedModel,
		})
		if err != nil {
			return nil, nil, err
		}
		emb, err := embedderFor(cfg, client)
		if err != nil {
			return nil, nil, err
		}
		return emb, client, nil
	case "google":
		if cfg.Google == nil {
			return nil, nil, fmt.Errorf("google provider config missing")
		}
		key := os.Getenv(cfg.Google.APIKeyEnv)
		if key == "" {
			return nil, nil, fmt.Errorf("missing API key in env %s", cfg.Google.APIKeyEnv)
		}
		client, err := google.New(ctx, google.Config{
			APIKey:     key,
			ChatModel:  cfg.Google.ChatModel,
			EmbedModel: cfg.Google.EmbedModel,
		})
		if err != nil {
			return nil, nil, err
		}
		emb, err := embedderFor(cfg, client)
		if err != nil {
			return nil, nil, err
		}
		return emb, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider: %s", cfg.Type)
	}
}

// embedderFor applies the embedder override; by default the family client
// embeds as well as generates.
func embedderFor(cfg config.ProviderConfig, family domain.Embedder) (domain.Embedder, error) {
	switch cfg.Embedder {
	case "":
		return family, nil
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder)
	}
}
