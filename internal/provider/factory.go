package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/blinko-space/blinko-ai/internal/cache"
	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/logging"
)

const (
	// configTTL bounds how stale a configuration snapshot may be. Short so
	// settings changes take effect almost immediately without hammering the
	// source on every request.
	configTTL = time.Second

	// bundleTTL bounds how long a built bundle is reused when the
	// configuration key has not changed.
	bundleTTL = 24 * time.Hour
)

// Factory builds and caches provider bundles. Configuration snapshots are
// cached for one second; built bundles are reused until the configuration key
// changes or the bundle ages out. Safe for concurrent use.
type Factory struct {
	source config.Source
	cache  *cache.Cache
	clk    clock.Clock

	mu         sync.Mutex
	current    *Bundle
	currentKey string
	builtAt    time.Time
}

// NewFactory constructs a Factory reading configuration from source.
func NewFactory(source config.Source, clk clock.Clock) *Factory {
	return &Factory{
		source: source,
		cache:  cache.New(clk),
		clk:    clk,
	}
}

// Resolve returns the current configuration snapshot, cached for configTTL.
func (f *Factory) Resolve(ctx context.Context) (*config.Config, error) {
	return cache.Wrap(f.cache, "config", configTTL, func() (*config.Config, error) {
		cfg, err := f.source.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("provider: load config: %w", err)
		}
		return cfg, nil
	})
}

// Bundle returns the provider bundle for the current configuration, building
// it on first use and rebuilding whenever the configuration key changes or
// the cached bundle ages out. The previous bundle's index is closed on swap.
func (f *Factory) Bundle(ctx context.Context) (*Bundle, error) {
	cfg, err := f.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := cfg.BundleKey()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && f.currentKey == key && f.clk.Since(f.builtAt) < bundleTTL {
		return f.current, nil
	}

	bundle, err := f.build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if f.current != nil {
		if err := f.current.Index.Close(); err != nil {
			logging.FromContext(ctx).Warn("closing stale vector index", "error", err)
		}
	}
	f.current = bundle
	f.currentKey = key
	f.builtAt = f.clk.Now()
	return bundle, nil
}

// Invalidate drops the cached configuration and bundle so the next call to
// Bundle rebuilds from a fresh snapshot. The current bundle's index stays
// open; it is closed when the replacement is built.
func (f *Factory) Invalidate() {
	f.cache.Delete("config")
	f.mu.Lock()
	f.currentKey = ""
	f.mu.Unlock()
}

// Close releases the cached bundle's resources.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	err := f.current.Index.Close()
	f.current = nil
	f.currentKey = ""
	if err != nil {
		return fmt.Errorf("provider: close index: %w", err)
	}
	return nil
}

// build assembles a Bundle from a validated configuration snapshot.
func (f *Factory) build(ctx context.Context, cfg *config.Config) (*Bundle, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}
	dims := Dimensions(cfg.EmbeddingModel)
	// Provision the collection so a fresh database works without a rebuild.
	// A width conflict after an embedding model change is not fatal here; a
	// forced rebuild recreates the collection at the new width.
	if err := idx.CreateIndex(ctx, config.Collection, dims); err != nil {
		logging.FromContext(ctx).Warn("provisioning vector collection", "error", err)
	}
	md, tok := newSplitters()
	return &Bundle{
		Config:           cfg,
		ChatModel:        chatModel,
		Embedder:         emb,
		Index:            idx,
		Dimensions:       dims,
		MarkdownSplitter: md,
		TokenSplitter:    tok,
	}, nil
}
