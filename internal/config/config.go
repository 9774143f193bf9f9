package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	LogConfig  logger.LogConfig  `json:"log_config"`
	Embedding  EmbeddingConfig   `json:"embedding"`
	EmbedCache EmbedCacheConfig  `json:"embed_cache"`
	Vector     VectorConfig      `json:"vector"`
	Providers  []ProviderConfig  `json:"providers"`
	Chunker    ChunkerConfig     `json:"chunker"`
	Translate  TranslateConfig   `json:"translate"`
	Jobs       []JobConfig       `json:"jobs"`
}

// FileStoreConfig selects a blob store backend; Data is decoded by the backend.
type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type EmbeddingConfig struct {
	Type      string      `json:"type"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type EmbedCacheConfig struct {
	Disabled      bool            `json:"disabled"`
	Store         FileStoreConfig `json:"store"`
	LRUSize       int             `json:"lru_size"`
	LRUTTLSeconds int64           `json:"lru_ttl_seconds"`
}

type VectorConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ProviderConfig struct {
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type ChunkerConfig struct {
	MaxSentences int `json:"max_sentences"`
	MinSentences int `json:"min_sentences"`
	TokenBudget  int `json:"token_budget"`
}

type TranslateConfig struct {
	TopK                int    `json:"top_k"`
	SingleUnitThreshold int    `json:"single_unit_threshold"`
	DefaultUser         string `json:"default_user"`
}

type JobConfig struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads a JSON config file. ${VAR} references inside string values are
// expanded from the environment; a bare $ is kept as is.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	expanded, err := json.Marshal(expandEnv(tree))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func expandEnv(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return envRef.ReplaceAllStringFunc(val, func(ref string) string {
			return os.Getenv(ref[2 : len(ref)-1])
		})
	case map[string]interface{}:
		for k, item := range val {
			val[k] = expandEnv(item)
		}
	case []interface{}:
		for i, item := range val {
			val[i] = expandEnv(item)
		}
	}
	return v
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) error {
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Embedding.Type == "" {
		cfg.Embedding.Type = "huggingface"
		if cfg.Embedding.Data == nil {
			cfg.Embedding.Data = map[string]interface{}{
				"api_key": os.Getenv("HUGGINGFACE_API_KEY"),
				"model":   envOr("EMBEDDING_MODEL", ""),
			}
		}
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 384
	}
	if cfg.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if cfg.EmbedCache.Store.Type == "" {
		cfg.EmbedCache.Store.Type = "local"
		if cfg.EmbedCache.Store.Data == nil {
			cfg.EmbedCache.Store.Data = map[string]interface{}{"dir": "./embedding_cache"}
		}
	}
	if cfg.EmbedCache.LRUSize == 0 {
		cfg.EmbedCache.LRUSize = 1024
	}
	if cfg.EmbedCache.LRUTTLSeconds == 0 {
		cfg.EmbedCache.LRUTTLSeconds = 600
	}
	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "sqlitevec"
		if cfg.Vector.Data == nil {
			cfg.Vector.Data = map[string]interface{}{"path": "./vector_db/translation_memory.db"}
		}
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	for i, p := range cfg.Providers {
		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("providers[%d].type is required", i)
		}
		if p.Name == "" {
			cfg.Providers[i].Name = p.Type
		}
	}
	if cfg.Chunker.MaxSentences == 0 {
		cfg.Chunker.MaxSentences = 4
	}
	if cfg.Chunker.MinSentences == 0 {
		cfg.Chunker.MinSentences = 2
	}
	if cfg.Chunker.TokenBudget == 0 {
		cfg.Chunker.TokenBudget = 140
	}
	if cfg.Translate.TopK == 0 {
		cfg.Translate.TopK = 2
	}
	if cfg.Translate.SingleUnitThreshold == 0 {
		cfg.Translate.SingleUnitThreshold = 3000
	}
	if cfg.Translate.DefaultUser == "" {
		cfg.Translate.DefaultUser = "anonymous"
	}
	for i, j := range cfg.Jobs {
		if j.Name == "" || j.Spec == "" {
			return fmt.Errorf("jobs[%d] name and spec are required", i)
		}
	}
	return nil
}

// DefaultProviders is the built-in waterfall: hosted primary, secondary
// hosted, fast hosted, then the local runtime.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "huggingface", Type: "huggingface", Data: map[string]interface{}{
			"api_key": os.Getenv("HUGGINGFACE_API_KEY"),
			"model":   envOr("MODEL_ID", ""),
		}},
		{Name: "deepseek", Type: "deepseek", Data: map[string]interface{}{
			"api_key": os.Getenv("DEEPSEEK_API_KEY"),
		}},
		{Name: "groq", Type: "groq", Data: map[string]interface{}{
			"api_key": os.Getenv("GROQ_API_KEY"),
			"model":   envOr("GROQ_MODEL", ""),
		}},
		{Name: "ollama", Type: "ollama", Data: map[string]interface{}{
			"base_url": envOr("OLLAMA_BASE_URL", ""),
			"model":    envOr("OLLAMA_MODEL", ""),
		}},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
