package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider.Type)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Provider.OpenAI.APIKeyEnv)
	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, "maf_index.json", cfg.Index.Path)
	assert.Equal(t, "file", cfg.Index.Store)
	assert.Equal(t, 600, cfg.Index.LockTimeoutSecs)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 100, cfg.Crawler.MaxPages)
	assert.Equal(t, filepath.Join("data", "webtext"), cfg.Crawler.OutputDir)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider:
  type: google
data:
  dir: /srv/maf/data
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.Provider.Type)
	require.NotNil(t, cfg.Provider.Google)
	assert.Equal(t, "GOOGLE_API_KEY", cfg.Provider.Google.APIKeyEnv)
	assert.Equal(t, "/srv/maf/data", cfg.Data.Dir)
	assert.Equal(t, filepath.Join("/srv/maf/data", "webtext"), cfg.Crawler.OutputDir)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Server.Addr = ":9000"
	cfg.Index.Store = "qdrant"
	cfg.Index.Qdrant = &QdrantConfig{URL: "http://localhost:6333", Collection: "sheets"}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", loaded.Server.Addr)
	assert.Equal(t, "qdrant", loaded.Index.Store)
	require.NotNil(t, loaded.Index.Qdrant)
	assert.Equal(t, "sheets", loaded.Index.Qdrant.Collection)
	assert.Equal(t, 15, loaded.Index.Qdrant.TimeoutSecs)
}
