// Package rebuild implements the index rebuild coordinator: a batch job that
// walks every non-recycled note, re-embeds its content and attachments, and
// reports per-item outcomes as a lazy progress stream.
package rebuild

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/logging"
	"github.com/blinko-space/blinko-ai/internal/metrics"
	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/pipeline"
	"github.com/blinko-space/blinko-ai/internal/provider"
)

// Kind identifies the outcome of one processed item.
type Kind string

const (
	// KindSkip marks a note that was already indexed and not forced.
	KindSkip Kind = "skip"
	// KindSuccess marks a successfully re-embedded item.
	KindSuccess Kind = "success"
	// KindError marks an item whose embedding failed; the run continues.
	KindError Kind = "error"
)

// Progress tracks absolute position across the whole run, counted per note.
// Attachment sub-events carry their note's position.
type Progress struct {
	Current int
	Total   int
}

// Event is one progress report. Label is a short preview of the processed
// content: the first 30 characters of a note, or an attachment's path.
type Event struct {
	Kind     Kind
	Label    string
	Err      error
	Progress Progress
}

// labelLen bounds the note content preview in event labels.
const labelLen = 30

// batchSize bounds how many notes are drawn per batch, to cap memory and
// pace provider calls.
const batchSize = 5

// Coordinator drives full index rebuilds.
type Coordinator struct {
	factory  provider.Bundler
	store    note.Store
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
}

// New constructs a Coordinator from the provided dependencies.
func New(factory provider.Bundler, store note.Store, p *pipeline.Pipeline, m *metrics.Metrics) (*Coordinator, error) {
	if factory == nil {
		return nil, fmt.Errorf("rebuild: factory must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rebuild: store must not be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("rebuild: pipeline must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("rebuild: metrics must not be nil")
	}
	return &Coordinator{factory: factory, store: store, pipeline: p, metrics: m}, nil
}

// Rebuild returns a lazy, single-use event sequence; iterating it runs the
// job, and breaking out of the iteration stops it. Stopping mid-run leaves
// the index valid but incomplete. With force, the collection is destroyed
// and recreated (dimensions recomputed from the current configuration)
// before any note is processed, and already-indexed notes are re-embedded
// instead of skipped. A per-item failure becomes a KindError event and the
// run continues; one bad note never aborts the rebuild.
func (c *Coordinator) Rebuild(ctx context.Context, force bool) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		logger := logging.FromContext(ctx)

		bundle, err := c.factory.Bundle(ctx)
		if err != nil {
			c.emitMetric(KindError)
			yield(Event{Kind: KindError, Err: err})
			return
		}

		if force {
			if err := bundle.Index.DeleteIndex(ctx, config.Collection); err != nil {
				logger.Warn("dropping collection before rebuild failed", "error", err)
			}
			if err := bundle.Index.CreateIndex(ctx, config.Collection, bundle.Dimensions); err != nil {
				c.emitMetric(KindError)
				yield(Event{Kind: KindError, Err: fmt.Errorf("rebuild: recreate collection: %w", err)})
				return
			}
		}

		notes, err := c.store.AllActive(ctx)
		if err != nil {
			c.emitMetric(KindError)
			yield(Event{Kind: KindError, Err: fmt.Errorf("rebuild: list notes: %w", err)})
			return
		}

		total := len(notes)
		current := 0
		for start := 0; start < len(notes); start += batchSize {
			end := min(start+batchSize, len(notes))
			for _, n := range notes[start:end] {
				current++
				if !c.processNote(ctx, n, force, Progress{Current: current, Total: total}, yield) {
					return
				}
			}
		}
	}
}

// processNote handles one note and its attachments, yielding one event per
// item. Returns false when the consumer stopped iterating.
func (c *Coordinator) processNote(ctx context.Context, n note.Note, force bool, p Progress, yield func(Event) bool) bool {
	label := truncate(n.Content, labelLen)

	if n.IsIndexed && !force {
		c.emitMetric(KindSkip)
		return yield(Event{Kind: KindSkip, Label: label, Progress: p})
	}

	if n.Content != "" {
		err := c.pipeline.UpsertNote(ctx, n.ID, n.Content, pipeline.ModeUpdate, n.UpdatedAt)
		kind := KindSuccess
		if err != nil {
			kind = KindError
		}
		c.emitMetric(kind)
		if !yield(Event{Kind: kind, Label: label, Err: err, Progress: p}) {
			return false
		}
	}

	for _, a := range n.Attachments {
		err := c.pipeline.UpsertAttachment(ctx, n.ID, a.Path, n.UpdatedAt)
		kind := KindSuccess
		if err != nil {
			kind = KindError
		}
		c.emitMetric(kind)
		if !yield(Event{Kind: kind, Label: attachmentLabel(a.Path), Err: err, Progress: p}) {
			return false
		}
	}
	return true
}

func (c *Coordinator) emitMetric(kind Kind) {
	c.metrics.RebuildEventsTotal.WithLabelValues(string(kind)).Inc()
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// attachmentLabel decodes percent-escapes in stored paths for display,
// falling back to the raw path.
func attachmentLabel(path string) string {
	if decoded, err := url.QueryUnescape(path); err == nil {
		return decoded
	}
	return path
}
