// Package config loads the application configuration from an optional YAML
// file, then applies environment overrides and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mufashe-rag/internal/models"
	"mufashe-rag/internal/processor"

	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up in the working directory when no file is given
const DefaultPath = "mufashe.yaml"

// PathsConfig holds the document directories
type PathsConfig struct {
	RawDir   string `yaml:"raw_dir"`
	CleanDir string `yaml:"clean_dir"`
}

// ChunkingConfig configures the chunk windows
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// StoreConfig selects and configures the similarity store
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Collection  string `yaml:"collection"`
	SQLiteDir   string `yaml:"sqlite_dir"`
	PostgresURL string `yaml:"postgres_url"`
	Dimensions  int    `yaml:"dimensions"`
}

// EmbeddingConfig configures the Ollama embedding model
type EmbeddingConfig struct {
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	BatchSize         int     `yaml:"batch_size"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// CompletionConfig selects and configures the answer model
type CompletionConfig struct {
	Provider    string  `yaml:"provider"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	OllamaHost  string  `yaml:"ollama_host"`
}

// RetrievalConfig tunes question time retrieval
type RetrievalConfig struct {
	TopK             int `yaml:"top_k"`
	MinTopK          int `yaml:"min_top_k"`
	MaxTopK          int `yaml:"max_top_k"`
	MaxSourceChars   int `yaml:"max_source_chars"`
	MinQuestionChars int `yaml:"min_question_chars"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// RedisConfig enables the ingest lock when URL is set
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LogConfig selects the log format
type LogConfig struct {
	Format string `yaml:"format"`
}

// Config is the root application configuration
type Config struct {
	Paths      PathsConfig                  `yaml:"paths"`
	Normalize  processor.BoilerplateOptions `yaml:"normalize"`
	Chunking   ChunkingConfig               `yaml:"chunking"`
	Store      StoreConfig                  `yaml:"store"`
	Embedding  EmbeddingConfig              `yaml:"embedding"`
	Completion CompletionConfig             `yaml:"completion"`
	Retrieval  RetrievalConfig              `yaml:"retrieval"`
	Server     ServerConfig                 `yaml:"server"`
	Redis      RedisConfig                  `yaml:"redis"`
	Log        LogConfig                    `yaml:"log"`
}

// Default returns the configuration used when no file or environment overrides exist
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			RawDir:   filepath.Join("data", "laws"),
			CleanDir: filepath.Join("data", "laws_clean"),
		},
		Normalize: processor.DefaultBoilerplateOptions(),
		Chunking: ChunkingConfig{
			ChunkSize: processor.DefaultChunkSize,
			Overlap:   processor.DefaultChunkOverlap,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			Collection: "mufashe_corpus",
			SQLiteDir:  filepath.Join("storage", "index"),
			Dimensions: 384,
		},
		Embedding: EmbeddingConfig{
			Model:       "all-minilm",
			BatchSize:   64,
			TimeoutSecs: 60,
		},
		Completion: CompletionConfig{
			Provider:    "openai",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "gpt-4.1-mini",
			Temperature: 0.2,
			TimeoutSecs: 120,
		},
		Retrieval: RetrievalConfig{
			TopK:             6,
			MinTopK:          3,
			MaxTopK:          12,
			MaxSourceChars:   1400,
			MinQuestionChars: 3,
		},
		Server: ServerConfig{
			Addr:               ":5000",
			RequestTimeoutSecs: 60,
		},
		Log: LogConfig{Format: "text"},
	}
}

// Load reads the YAML file at path, then applies environment overrides and defaults.
// An empty path tries DefaultPath and falls back to defaults if it does not exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", models.ErrConfiguration, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("%w: read %s: %w", models.ErrConfiguration, path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_size must be positive"))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking.overlap must be in [0, chunk_size)"))
	}
	switch c.Store.Backend {
	case "sqlite":
	case "postgres":
		if c.Store.PostgresURL == "" {
			errs = append(errs, fmt.Errorf("store.postgres_url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be sqlite or postgres, got %q", c.Store.Backend))
	}
	if c.Store.Collection == "" {
		errs = append(errs, fmt.Errorf("store.collection is required"))
	}
	switch c.Completion.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("completion.provider must be openai or ollama, got %q", c.Completion.Provider))
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		errs = append(errs, fmt.Errorf("completion.temperature must be between 0 and 2"))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive"))
	}
	if c.Retrieval.MinTopK <= 0 || c.Retrieval.MaxTopK < c.Retrieval.MinTopK {
		errs = append(errs, fmt.Errorf("retrieval.min_top_k must be positive and not above retrieval.max_top_k"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// APIKey returns the completion API key from the configured environment variable
func (c *Config) APIKey() string {
	return os.Getenv(c.Completion.APIKeyEnv)
}

// EmbeddingTimeout returns the per-call embedding timeout
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSecs) * time.Second
}

// CompletionTimeout returns the per-call completion timeout
func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Completion.TimeoutSecs) * time.Second
}

// RequestTimeout returns the HTTP per-request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

func applyEnv(cfg *Config) {
	cfg.Paths.RawDir = envOrDefault("MUFASHE_RAW_DIR", cfg.Paths.RawDir)
	cfg.Paths.CleanDir = envOrDefault("MUFASHE_CLEAN_DIR", cfg.Paths.CleanDir)

	cfg.Store.Backend = envOrDefault("MUFASHE_STORE", cfg.Store.Backend)
	cfg.Store.Collection = envOrDefault("MUFASHE_COLLECTION", cfg.Store.Collection)
	cfg.Store.SQLiteDir = envOrDefault("MUFASHE_SQLITE_DIR", cfg.Store.SQLiteDir)
	cfg.Store.PostgresURL = envOrDefault("DATABASE_URL", cfg.Store.PostgresURL)

	cfg.Embedding.Host = envOrDefault("MUFASHE_EMBED_HOST", cfg.Embedding.Host)
	cfg.Embedding.Model = envOrDefault("MUFASHE_EMBED_MODEL", cfg.Embedding.Model)
	cfg.Embedding.RequestsPerSecond = envOrDefaultFloat("MUFASHE_EMBED_RPS", cfg.Embedding.RequestsPerSecond)

	cfg.Completion.Provider = envOrDefault("MUFASHE_COMPLETION_PROVIDER", cfg.Completion.Provider)
	cfg.Completion.Model = envOrDefault("OPENAI_MODEL", cfg.Completion.Model)
	cfg.Completion.BaseURL = envOrDefault("OPENAI_BASE_URL", cfg.Completion.BaseURL)

	cfg.Retrieval.TopK = envOrDefaultInt("MUFASHE_TOP_K", cfg.Retrieval.TopK)

	cfg.Server.Addr = envOrDefault("MUFASHE_ADDR", cfg.Server.Addr)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	cfg.Redis.URL = envOrDefault("REDIS_URL", cfg.Redis.URL)
	cfg.Log.Format = envOrDefault("MUFASHE_LOG_FORMAT", cfg.Log.Format)
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Paths.RawDir == "" {
		cfg.Paths.RawDir = d.Paths.RawDir
	}
	if cfg.Paths.CleanDir == "" {
		cfg.Paths.CleanDir = d.Paths.CleanDir
	}
	if cfg.Store.SQLiteDir == "" {
		cfg.Store.SQLiteDir = d.Store.SQLiteDir
	}
	if cfg.Store.Dimensions <= 0 {
		cfg.Store.Dimensions = d.Store.Dimensions
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = d.Embedding.Model
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = d.Embedding.BatchSize
	}
	if cfg.Embedding.TimeoutSecs <= 0 {
		cfg.Embedding.TimeoutSecs = d.Embedding.TimeoutSecs
	}
	if cfg.Completion.APIKeyEnv == "" {
		cfg.Completion.APIKeyEnv = d.Completion.APIKeyEnv
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = d.Completion.Model
	}
	if cfg.Completion.TimeoutSecs <= 0 {
		cfg.Completion.TimeoutSecs = d.Completion.TimeoutSecs
	}
	if cfg.Retrieval.MinTopK <= 0 {
		cfg.Retrieval.MinTopK = d.Retrieval.MinTopK
	}
	if cfg.Retrieval.MaxTopK <= 0 {
		cfg.Retrieval.MaxTopK = d.Retrieval.MaxTopK
	}
	if cfg.Retrieval.MaxSourceChars <= 0 {
		cfg.Retrieval.MaxSourceChars = d.Retrieval.MaxSourceChars
	}
	if cfg.Retrieval.MinQuestionChars <= 0 {
		cfg.Retrieval.MinQuestionChars = d.Retrieval.MinQuestionChars
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.RequestTimeoutSecs <= 0 {
		cfg.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
