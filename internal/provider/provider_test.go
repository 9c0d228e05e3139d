package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadueduardo/MAF/internal/config"
)

func openaiConfig() config.ProviderConfig {
	return config.ProviderConfig{
		Type:   "openai",
		OpenAI: &config.OpenAIConfig{APIKeyEnv: "TEST_OPENAI_API_KEY"},
	}
}

func TestNewDefaultEmbedderIsFamilyClient(t *testing.T) {
	t.Setenv("TEST_OPENAI_API_KEY", "test-key")

	emb, gen, err := New(context.Background(), openaiConfig())
	require.NoError(t, err)
	assert.Equal(t, "openai", emb.Name())
	assert.Equal(t, "openai", gen.Name())
}

func TestNewLocalEmbedderOverride(t *testing.T) {
	t.Setenv("TEST_OPENAI_API_KEY", "test-key")
	cfg := openaiConfig()
	cfg.Embedder = "tfidf"

	emb, gen, err := New(context.Background(), cfg)
	require.NoError(t, err)
	// Generation stays with the configured family; only embedding is local.
	assert.Equal(t, "tfidf", emb.Name())
	assert.Equal(t, "openai", gen.Name())
}

func TestNewUnknownEmbedder(t *testing.T) {
	t.Setenv("TEST_OPENAI_API_KEY", "test-key")
	cfg := openaiConfig()
	cfg.Embedder = "word2vec"

	_, _, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewMissingAPIKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_API_KEY", "")

	_, _, err := New(context.Background(), openaiConfig())
	require.Error(t, err)
}

func TestNewUnknownProvider(t *testing.T) {
	_, _, err := New(context.Background(), config.ProviderConfig{Type: "anthropic"})
	require.Error(t, err)
}
