package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds configuration for the OpenAI provider family.
type OpenAIConfig struct {
	APIKeyEnv  string `yaml:"api_key_env"`
	BaseURL    string `yaml:"base_url"`
	ChatModel  string `yaml:"chat_model"`
	EmbedModel string `yaml:"embed_model"`
}

// GoogleConfig holds configuration for the Google provider family.
type GoogleConfig struct {
	APIKeyEnv  string `yaml:"api_key_env"`
	ChatModel  string `yaml:"chat_model"`
	EmbedModel string `yaml:"embed_model"`
}

// ProviderConfig selects and configures the model provider family. Embedder
// overrides the embedding side independently of the generator family; "tfidf"
// selects the local vectorizer for offline development.
type ProviderConfig struct {
	Type     string        `yaml:"type"`
	Embedder string        `yaml:"embedder,omitempty"`
	OpenAI   *OpenAIConfig `yaml:"openai,omitempty"`
	Google   *GoogleConfig `yaml:"google,omitempty"`
}

// DataConfig points at the document source layout: a root directory with
// json/, dts/ and webtext/ subdirectories.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig configures the persisted vector index.
type IndexConfig struct {
	Path            string        `yaml:"path"`
	LockTimeoutSecs int           `yaml:"lock_timeout_secs"`
	Store           string        `yaml:"store"`
	Qdrant          *QdrantConfig `yaml:"qdrant,omitempty"`
}

// ServerConfig configures the HTTP layer.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// CrawlerConfig configures the website harvester.
type CrawlerConfig struct {
	RootURL   string `yaml:"root_url"`
	MaxPages  int    `yaml:"max_pages"`
	OutputDir string `yaml:"output_dir"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Provider ProviderConfig `yaml:"provider"`
	Data     DataConfig     `yaml:"data"`
	Index    IndexConfig    `yaml:"index"`
	Server   ServerConfig   `yaml:"server"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/maf/config.yaml.
// If neither exists, it writes defaults to ~/.config/maf/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "maf", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Provider: ProviderConfig{Type: "openai"},
		Data:     DataConfig{Dir: "data"},
		Index:    IndexConfig{Path: "maf_index.json", Store: "file"},
		Server:   ServerConfig{Addr: ":8000"},
		Crawler:  CrawlerConfig{MaxPages: 100},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "openai"
	}
	if cfg.Provider.Type == "openai" {
		if cfg.Provider.OpenAI == nil {
			cfg.Provider.OpenAI = &OpenAIConfig{}
		}
		if cfg.Provider.OpenAI.APIKeyEnv == "" {
			cfg.Provider.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Provider.Type == "google" {
		if cfg.Provider.Google == nil {
			cfg.Provider.Google = &GoogleConfig{}
		}
		if cfg.Provider.Google.APIKeyEnv == "" {
			cfg.Provider.Google.APIKeyEnv = "GOOGLE_API_KEY"
		}
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "maf_index.json"
	}
	if cfg.Index.Store == "" {
		cfg.Index.Store = "file"
	}
	if cfg.Index.LockTimeoutSecs == 0 {
		cfg.Index.LockTimeoutSecs = 600
	}
	if cfg.Index.Store == "qdrant" && cfg.Index.Qdrant != nil && cfg.Index.Qdrant.TimeoutSecs == 0 {
		cfg.Index.Qdrant.TimeoutSecs = 15
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Crawler.MaxPages == 0 {
		cfg.Crawler.MaxPages = 100
	}
	if cfg.Crawler.OutputDir == "" {
		cfg.Crawler.OutputDir = filepath.Join(cfg.Data.Dir, "webtext")
	}
}
