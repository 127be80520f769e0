// Package config defines the AI settings consumed by the provider factory
// and the rest of the indexing subsystem. Settings are owned by an external
// administration surface; this package reads them with a layered precedence:
// defaults → YAML file → env vars. Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. BLINKO_AI_CONFIG environment variable
//  3. ~/.blinko-ai/config.yaml
//  4. ./blinko-ai.yaml
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Provider enumerates the supported AI model providers.
type Provider string

const (
	// ProviderOpenAI selects the OpenAI API.
	ProviderOpenAI Provider = "OpenAI"
	// ProviderAzureOpenAI selects Azure OpenAI Service.
	ProviderAzureOpenAI Provider = "AzureOpenAI"
	// ProviderOllama selects a locally running Ollama instance.
	ProviderOllama Provider = "Ollama"
	// ProviderDeepSeek selects the DeepSeek API (OpenAI-compatible).
	ProviderDeepSeek Provider = "DeepSeek"
	// ProviderAnthropic selects the Anthropic API.
	ProviderAnthropic Provider = "Anthropic"
)

// Default retrieval parameters. Two distinct score defaults exist on
// purpose: primary retrieval uses 0.4, the wide chat-context query uses 0.3.
const (
	// DefaultTopK is the candidate count for primary retrieval.
	DefaultTopK = 3
	// DefaultMinScore is the primary retrieval score threshold.
	DefaultMinScore = 0.4
	// DefaultChatMinScore is the chat-context retrieval score threshold.
	DefaultChatMinScore = 0.3
	// ChatTopK is the widened candidate count used to build chat context.
	ChatTopK = 20
	// DefaultEmbeddingQPS caps embedding calls per second when unconfigured.
	DefaultEmbeddingQPS = 5.0
)

// Collection is the single vector collection shared by notes and attachments.
const Collection = "blinko"

// ErrNotConfigured is returned when the AI subsystem cannot run: either no
// model provider is selected or the AI feature gate is off. Callers fail
// fast on it; it is never retried.
var ErrNotConfigured = errors.New("config: model provider not configured or AI disabled")

// Config holds all AI settings recognized by the subsystem.
// Field names mirror the option names of the administration surface.
type Config struct {
	// AIModelProvider selects the backend: OpenAI, AzureOpenAI, Ollama,
	// DeepSeek, Anthropic.
	AIModelProvider Provider `yaml:"ai_model_provider"`

	// IsUseAI gates the whole AI feature set.
	IsUseAI bool `yaml:"is_use_ai"`

	// AIAPIKey authenticates chat model calls.
	AIAPIKey string `yaml:"ai_api_key"`

	// AIAPIEndpoint overrides the provider's default API endpoint.
	AIAPIEndpoint string `yaml:"ai_api_endpoint"`

	// AIModel is the chat model name (e.g. "gpt-4o", "claude-3-5-sonnet-20241022").
	AIModel string `yaml:"ai_model"`

	// EmbeddingAPIKey authenticates embedding calls. Falls back to AIAPIKey
	// when empty.
	EmbeddingAPIKey string `yaml:"embedding_api_key"`

	// EmbeddingEndpoint overrides the embedding API endpoint.
	EmbeddingEndpoint string `yaml:"embedding_endpoint"`

	// EmbeddingModel is the embedding model name; its substring determines
	// the vector collection dimensionality.
	EmbeddingModel string `yaml:"embedding_model"`

	// EmbeddingTopK is the candidate count for primary retrieval (0 = default 3).
	EmbeddingTopK int `yaml:"embedding_top_k"`

	// EmbeddingScore is the retrieval score threshold (0 = call-site default:
	// 0.4 for primary retrieval, 0.3 for chat context).
	EmbeddingScore float64 `yaml:"embedding_score"`

	// EmbeddingQPS caps embedding requests per second so batch re-indexing
	// stays within the provider's rate allowance (0 = default 5).
	EmbeddingQPS float64 `yaml:"embedding_qps"`

	// ExcludeEmbeddingTagID is the optional id of a tag whose name, when
	// present in note content, exempts that note from embedding (0 = none).
	ExcludeEmbeddingTagID int64 `yaml:"exclude_embedding_tag_id"`

	// VectorBackend selects the vector index backend: "sqlite" (default,
	// embedded) or "qdrant".
	VectorBackend string `yaml:"vector_backend"`

	// VectorDBPath is the SQLite vector database path (sqlite backend).
	VectorDBPath string `yaml:"vector_db_path"`

	// Qdrant holds qdrant connection settings (qdrant backend).
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds connection settings for a Qdrant deployment.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the optional API key for authenticated clusters.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the gRPC connection.
	TLS bool `yaml:"tls"`
}

// Validate fails fast when the subsystem cannot run. A missing provider or a
// disabled AI gate both surface as ErrNotConfigured.
func (c *Config) Validate() error {
	if c.AIModelProvider == "" || !c.IsUseAI {
		return ErrNotConfigured
	}
	return nil
}

// TopK returns the configured candidate count, defaulting to DefaultTopK.
func (c *Config) TopK() int {
	if c.EmbeddingTopK > 0 {
		return c.EmbeddingTopK
	}
	return DefaultTopK
}

// MinScore returns the primary retrieval threshold, defaulting to DefaultMinScore.
func (c *Config) MinScore() float64 {
	if c.EmbeddingScore > 0 {
		return c.EmbeddingScore
	}
	return DefaultMinScore
}

// QPS returns the embedding rate cap, defaulting to DefaultEmbeddingQPS.
func (c *Config) QPS() float64 {
	if c.EmbeddingQPS > 0 {
		return c.EmbeddingQPS
	}
	return DefaultEmbeddingQPS
}

// ChatMinScore returns the chat-context threshold, defaulting to DefaultChatMinScore.
func (c *Config) ChatMinScore() float64 {
	if c.EmbeddingScore > 0 {
		return c.EmbeddingScore
	}
	return DefaultChatMinScore
}

// BundleKey derives the cache key for the provider bundle from every field
// that changes bundle behaviour. Two configs with equal keys construct
// interchangeable bundles.
func (c *Config) BundleKey() string {
	return fmt.Sprintf("bundle-%s-%s-%s-%s-%s-%s-%d-%g-%g",
		c.AIModelProvider, c.AIAPIKey, c.EmbeddingModel, c.EmbeddingAPIKey,
		c.AIModel, c.AIAPIEndpoint, c.EmbeddingTopK, c.EmbeddingScore,
		c.EmbeddingQPS)
}

// Source supplies the current configuration. The settings are owned
// elsewhere (admin surface, database); consumers treat them as read-only
// and must tolerate the values changing between calls.
type Source interface {
	// Load returns the current configuration.
	Load(ctx context.Context) (*Config, error)
}

// FileSource is a Source reading a YAML file layered with env overrides.
type FileSource struct {
	// path is the explicit config file path ("" = search default locations).
	path string
}

// NewFileSource constructs a FileSource. An empty path searches the default
// locations documented on the package.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads the YAML file (if any), then applies env var overrides.
// A missing file is not an error; the config then comes from env alone.
func (s *FileSource) Load(_ context.Context) (*Config, error) {
	cfg := &Config{}

	if path := resolveConfigPath(s.path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Env always wins over
// YAML values so existing deployments keep working.
func applyEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr("AI_MODEL_PROVIDER", (*string)(&cfg.AIModelProvider))
	setStr("AI_API_KEY", &cfg.AIAPIKey)
	setStr("AI_API_ENDPOINT", &cfg.AIAPIEndpoint)
	setStr("AI_MODEL", &cfg.AIModel)
	setStr("EMBEDDING_API_KEY", &cfg.EmbeddingAPIKey)
	setStr("EMBEDDING_ENDPOINT", &cfg.EmbeddingEndpoint)
	setStr("EMBEDDING_MODEL", &cfg.EmbeddingModel)
	setStr("VECTOR_BACKEND", &cfg.VectorBackend)
	setStr("VECTOR_DB_PATH", &cfg.VectorDBPath)
	setStr("QDRANT_HOST", &cfg.Qdrant.Host)
	setStr("QDRANT_API_KEY", &cfg.Qdrant.APIKey)

	if v := os.Getenv("IS_USE_AI"); v != "" {
		cfg.IsUseAI = v == "true" || v == "1"
	}
	if v := os.Getenv("EMBEDDING_TOP_K"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingTopK = i
		}
	}
	if v := os.Getenv("EMBEDDING_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EmbeddingScore = f
		}
	}
	if v := os.Getenv("EMBEDDING_QPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EmbeddingQPS = f
		}
	}
	if v := os.Getenv("EXCLUDE_EMBEDDING_TAG_ID"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ExcludeEmbeddingTagID = i
		}
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Qdrant.Port = i
		}
	}
	if v := os.Getenv("QDRANT_TLS"); v != "" {
		cfg.Qdrant.TLS = v == "true"
	}
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("BLINKO_AI_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".blinko-ai", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("blinko-ai.yaml"); err == nil {
		return "blinko-ai.yaml"
	}

	return ""
}

// StaticSource is a Source returning a fixed Config. Used by tests and by
// callers that resolve settings through their own storage.
type StaticSource struct {
	// Config is returned verbatim from Load.
	Config *Config
}

// Load returns the fixed Config.
func (s *StaticSource) Load(_ context.Context) (*Config, error) {
	if s.Config == nil {
		return nil, fmt.Errorf("config: static source has no config")
	}
	return s.Config, nil
}
