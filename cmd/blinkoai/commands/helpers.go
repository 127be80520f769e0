package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinko-space/blinko-ai/internal/agent"
	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/files"
	"github.com/blinko-space/blinko-ai/internal/logging"
	"github.com/blinko-space/blinko-ai/internal/metrics"
	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/notify"
	"github.com/blinko-space/blinko-ai/internal/pipeline"
	"github.com/blinko-space/blinko-ai/internal/provider"
	"github.com/blinko-space/blinko-ai/internal/rebuild"
	"github.com/blinko-space/blinko-ai/internal/retrieval"
	"github.com/blinko-space/blinko-ai/internal/tracing"
)

// deps bundles the constructed subsystem components for a command invocation.
type deps struct {
	store        *note.SQLiteStore
	factory      *provider.Factory
	pipeline     *pipeline.Pipeline
	ranker       *retrieval.Ranker
	orchestrator *agent.Orchestrator
	rebuilder    *rebuild.Coordinator

	// close logs the run's metrics summary, releases the store and the
	// factory's index, and flushes traces.
	close func()
}

// buildDeps wires the full component graph for a CLI command. Langfuse
// tracing is opt-in and a no-op when keys are absent.
func buildDeps(ctx context.Context) (*deps, error) {
	log := logging.FromContext(ctx)

	handler, flush, ok := tracing.Setup()
	if ok {
		callbacks.AppendGlobalHandlers(handler)
		log.Info("langfuse tracing enabled")
	} else {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
	}

	store, err := note.Open(notesDBPath)
	if err != nil {
		return nil, fmt.Errorf("open note store: %w", err)
	}

	factory := provider.NewFactory(config.NewFileSource(configPath), clock.New())
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	pipe, err := pipeline.New(factory, store, files.NewLocalResolver(filesRoot), m)
	if err != nil {
		return nil, err
	}
	ranker, err := retrieval.New(factory, store, m)
	if err != nil {
		return nil, err
	}
	orchestrator, err := agent.New(factory, ranker, store, notify.NewLogNotifier(log), clock.New())
	if err != nil {
		return nil, err
	}
	rebuilder, err := rebuild.New(factory, store, pipe, m)
	if err != nil {
		return nil, err
	}

	return &deps{
		store:        store,
		factory:      factory,
		pipeline:     pipe,
		ranker:       ranker,
		orchestrator: orchestrator,
		rebuilder:    rebuilder,
		close: func() {
			if snap, err := metrics.Snapshot(reg); err != nil {
				log.Warn("gathering run metrics", slog.Any("error", err))
			} else if len(snap) > 0 {
				log.Debug("run metrics", slog.Any("counts", snap))
			}
			if err := factory.Close(); err != nil {
				log.Warn("closing provider factory", slog.Any("error", err))
			}
			if err := store.Close(); err != nil {
				log.Warn("closing note store", slog.Any("error", err))
			}
			if flush != nil {
				flush()
			}
		},
	}, nil
}
