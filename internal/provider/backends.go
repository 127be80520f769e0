package provider

import (
	"context"
	"fmt"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/embedder"
	"github.com/blinko-space/blinko-ai/internal/vector"
)

const (
	// deepseekBaseURL is the default endpoint for the DeepSeek OpenAI-compatible API.
	deepseekBaseURL = "https://api.deepseek.com/v1"
	// ollamaBaseURL is the default endpoint for a local Ollama instance.
	ollamaBaseURL = "http://localhost:11434"
	// azureAPIVersion is the Azure OpenAI REST API version used for chat and embeddings.
	azureAPIVersion = "2024-02-01"
	// defaultMaxTokens caps the number of tokens generated per response.
	defaultMaxTokens = 4096
)

// newChatModel constructs the conversational model for the configured provider.
func newChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	switch cfg.AIModelProvider {
	case config.ProviderOpenAI:
		return newOpenAIChat(ctx, cfg)
	case config.ProviderAzureOpenAI:
		return newAzureChat(ctx, cfg)
	case config.ProviderOllama:
		return newOllamaChat(ctx, cfg)
	case config.ProviderDeepSeek:
		return newDeepSeekChat(ctx, cfg)
	case config.ProviderAnthropic:
		return newAnthropicChat(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown provider %q — valid values: OpenAI, AzureOpenAI, Ollama, DeepSeek, Anthropic", cfg.AIModelProvider)
	}
}

// newOpenAIChat constructs a ChatModel backed by the OpenAI API or any
// OpenAI-compatible endpoint configured via AIAPIEndpoint.
func newOpenAIChat(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("provider: aiApiKey is required for the OpenAI provider")
	}
	maxTokens := defaultMaxTokens
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:     cfg.AIModel,
		APIKey:    cfg.AIAPIKey,
		BaseURL:   cfg.AIAPIEndpoint,
		MaxTokens: &maxTokens,
	})
}

// newAzureChat constructs a ChatModel backed by Azure OpenAI Service.
func newAzureChat(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("provider: aiApiKey is required for the AzureOpenAI provider")
	}
	if cfg.AIAPIEndpoint == "" {
		return nil, fmt.Errorf("provider: aiApiEndpoint (Azure endpoint) is required for the AzureOpenAI provider")
	}
	maxTokens := defaultMaxTokens
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:      cfg.AIModel,
		APIKey:     cfg.AIAPIKey,
		BaseURL:    cfg.AIAPIEndpoint,
		ByAzure:    true,
		APIVersion: azureAPIVersion,
		MaxTokens:  &maxTokens,
		// Use the deployment name as-is — the default mapper strips dots/colons
		// which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	})
}

// newOllamaChat constructs a ChatModel backed by a local Ollama instance.
func newOllamaChat(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	baseURL := cfg.AIAPIEndpoint
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: baseURL,
		Model:   cfg.AIModel,
	})
}

// newDeepSeekChat constructs a ChatModel backed by the DeepSeek API, which is
// OpenAI-compatible.
func newDeepSeekChat(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("provider: aiApiKey is required for the DeepSeek provider")
	}
	baseURL := cfg.AIAPIEndpoint
	if baseURL == "" {
		baseURL = deepseekBaseURL
	}
	maxTokens := defaultMaxTokens
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:     cfg.AIModel,
		APIKey:    cfg.AIAPIKey,
		BaseURL:   baseURL,
		MaxTokens: &maxTokens,
	})
}

// newAnthropicChat constructs a ChatModel backed by the Anthropic API.
func newAnthropicChat(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("provider: aiApiKey is required for the Anthropic provider")
	}
	claudeCfg := &einoclaude.Config{
		APIKey:    cfg.AIAPIKey,
		Model:     cfg.AIModel,
		MaxTokens: defaultMaxTokens,
	}
	if cfg.AIAPIEndpoint != "" {
		endpoint := cfg.AIAPIEndpoint
		claudeCfg.BaseURL = &endpoint
	}
	return einoclaude.NewChatModel(ctx, claudeCfg) //nolint:wrapcheck // constructor passthrough
}

// newEmbedder constructs the embedder for the configured provider. The
// embedding credentials fall back to the chat credentials when the dedicated
// embedding fields are unset. Every client shares one rate limiter built
// from the configured QPS cap.
func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	apiKey := cfg.EmbeddingAPIKey
	if apiKey == "" {
		apiKey = cfg.AIAPIKey
	}
	endpoint := cfg.EmbeddingEndpoint
	if endpoint == "" {
		endpoint = cfg.AIAPIEndpoint
	}
	limiter := embedder.NewLimiter(cfg.QPS())

	switch cfg.AIModelProvider {
	case config.ProviderOllama:
		host := endpoint
		if host == "" {
			host = ollamaBaseURL
		}
		return embedder.NewOllamaEmbedder(&embedder.OllamaConfig{
			Host:    host,
			Model:   cfg.EmbeddingModel,
			Limiter: limiter,
		}), nil
	case config.ProviderAzureOpenAI:
		if endpoint == "" {
			return nil, fmt.Errorf("provider: embeddingApiEndpoint is required for the AzureOpenAI provider")
		}
		return embedder.NewOpenAIEmbedder(&embedder.OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      cfg.EmbeddingModel,
			Azure:      true,
			APIVersion: azureAPIVersion,
			Limiter:    limiter,
		}), nil
	case config.ProviderAnthropic, config.ProviderDeepSeek:
		// Neither provider offers an embeddings API; an OpenAI-compatible
		// embedding endpoint must be configured separately.
		if cfg.EmbeddingEndpoint == "" {
			return nil, fmt.Errorf("provider: embeddingApiEndpoint is required for the %s provider", cfg.AIModelProvider)
		}
		return embedder.NewOpenAIEmbedder(&embedder.OpenAIConfig{
			BaseURL: cfg.EmbeddingEndpoint,
			APIKey:  apiKey,
			Model:   cfg.EmbeddingModel,
			Limiter: limiter,
		}), nil
	default:
		baseURL := endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return embedder.NewOpenAIEmbedder(&embedder.OpenAIConfig{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Model:   cfg.EmbeddingModel,
			Limiter: limiter,
		}), nil
	}
}

// newIndex constructs the vector index for the configured backend.
func newIndex(cfg *config.Config) (vector.Index, error) {
	switch cfg.VectorBackend {
	case "", "sqlite":
		path := cfg.VectorDBPath
		if path == "" {
			path = "blinko-vectors.db"
		}
		idx, err := vector.Open(path)
		if err != nil {
			return nil, fmt.Errorf("provider: open sqlite index: %w", err)
		}
		return idx, nil
	case "qdrant":
		idx, err := vector.NewQdrantIndex(&vector.QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey,
			UseTLS: cfg.Qdrant.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("provider: connect qdrant: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("provider: unknown vector backend %q — valid values: sqlite, qdrant", cfg.VectorBackend)
	}
}
