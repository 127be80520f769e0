// Package pipeline implements the embedding pipeline: it chunks note and
// attachment content, computes embeddings in one batched call, upserts the
// results into the vector index, and flips the source note's indexing flags.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/extract"
	"github.com/blinko-space/blinko-ai/internal/files"
	"github.com/blinko-space/blinko-ai/internal/logging"
	"github.com/blinko-space/blinko-ai/internal/metrics"
	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/provider"
	"github.com/blinko-space/blinko-ai/internal/vector"
)

// Mode selects the upsert behavior for a note.
type Mode string

const (
	// ModeInsert embeds a note that has never been indexed.
	ModeInsert Mode = "insert"
	// ModeUpdate re-embeds a note, removing its previous vectors first.
	ModeUpdate Mode = "update"
)

// Pipeline orchestrates the chunk, embed, upsert flow. Safe for concurrent
// use; concurrent upserts for the same note are serialized by a per-note lock
// so delete-then-insert sequences cannot interleave.
type Pipeline struct {
	factory provider.Bundler
	store   note.Store
	files   files.Resolver
	metrics *metrics.Metrics

	// locks holds one *sync.Mutex per note id.
	locks sync.Map
}

// New constructs a Pipeline from the provided dependencies.
func New(factory provider.Bundler, store note.Store, resolver files.Resolver, m *metrics.Metrics) (*Pipeline, error) {
	if factory == nil {
		return nil, fmt.Errorf("pipeline: factory must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("pipeline: store must not be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("pipeline: file resolver must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("pipeline: metrics must not be nil")
	}
	return &Pipeline{
		factory: factory,
		store:   store,
		files:   resolver,
		metrics: m,
	}, nil
}

// lockFor returns the mutex serializing writes for the given note id.
func (p *Pipeline) lockFor(id int64) *sync.Mutex {
	mu, _ := p.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// UpsertNote chunks content, embeds it, and upserts the vectors with the note
// id in their metadata. In update mode any previously stored vectors for the
// id are removed first so only one generation exists at a time. A failure to
// flip the isIndexed flag after a successful vector write is logged and
// swallowed; the vector write is the operation of record.
func (p *Pipeline) UpsertNote(ctx context.Context, id int64, content string, mode Mode, updatedAt time.Time) error {
	logger := logging.FromContext(ctx)

	bundle, err := p.factory.Bundle(ctx)
	if err != nil {
		return err
	}

	excluded, err := p.isExcluded(ctx, bundle.Config, content)
	if err != nil {
		return err
	}
	if excluded {
		logger.Debug("note carries the exclude tag, skipping embedding", "note_id", id)
		p.metrics.DocumentsIndexedTotal.WithLabelValues("note", "skipped").Inc()
		return nil
	}

	mu := p.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if mode == ModeUpdate {
		if _, err := bundle.Index.DeleteByID(ctx, config.Collection, id); err != nil && !errors.Is(err, vector.ErrNotFound) {
			p.metrics.DocumentsIndexedTotal.WithLabelValues("note", "error").Inc()
			return fmt.Errorf("pipeline: delete previous vectors for note %d: %w", id, err)
		}
	}

	chunks, err := bundle.MarkdownSplitter.SplitText(content)
	if err != nil {
		p.metrics.DocumentsIndexedTotal.WithLabelValues("note", "error").Inc()
		return fmt.Errorf("pipeline: split note %d: %w", id, err)
	}
	if err := p.embedAndUpsert(ctx, bundle, id, chunks); err != nil {
		p.metrics.DocumentsIndexedTotal.WithLabelValues("note", "error").Inc()
		return err
	}

	if err := p.store.MarkIndexed(ctx, id, false, updatedAt); err != nil {
		logger.Warn("marking note indexed failed", "note_id", id, "error", err)
	}
	p.metrics.DocumentsIndexedTotal.WithLabelValues("note", "ok").Inc()
	return nil
}

// UpsertAttachment extracts the attachment's plain text, chunks it by token
// count, embeds it, and upserts the vectors under the owning note's id. The
// isAttachmentsIndexed flag update is best-effort, as in UpsertNote.
func (p *Pipeline) UpsertAttachment(ctx context.Context, noteID int64, path string, updatedAt time.Time) error {
	logger := logging.FromContext(ctx)

	bundle, err := p.factory.Bundle(ctx)
	if err != nil {
		return err
	}

	localPath, err := p.files.Resolve(ctx, path)
	if err != nil {
		p.metrics.DocumentsIndexedTotal.WithLabelValues("attachment", "error").Inc()
		return fmt.Errorf("pipeline: resolve attachment %q: %w", path, err)
	}
	content, err := extract.Text(localPath)
	if err != nil {
		p.metrics.DocumentsIndexedTotal.WithLabelValues("attachment", "error").Inc()
		return fmt.Errorf("pipeline: attachment %q: %w", path, err)
	}

	mu := p.lockFor(noteID)
	mu.Lock()
	defer mu.Unlock()

	chunks, err := bundle.TokenSplitter.SplitText(content)
	if err != nil {
		p.metrics.DocumentsIndexedTotal.WithLabelValues("attachment", "error").Inc()
		return fmt.Errorf("pipeline: split attachment %q: %w", path, err)
	}
	if err := p.embedAndUpsert(ctx, bundle, noteID, chunks); err != nil {
		p.metrics.DocumentsIndexedTotal.WithLabelValues("attachment", "error").Inc()
		return err
	}

	if err := p.store.MarkIndexed(ctx, noteID, true, updatedAt); err != nil {
		logger.Warn("marking attachments indexed failed", "note_id", noteID, "error", err)
	}
	p.metrics.DocumentsIndexedTotal.WithLabelValues("attachment", "ok").Inc()
	return nil
}

// DeleteNote removes all vectors stored for the note id. A missing id is an
// index inconsistency and is surfaced as vector.ErrNotFound.
func (p *Pipeline) DeleteNote(ctx context.Context, id int64) error {
	bundle, err := p.factory.Bundle(ctx)
	if err != nil {
		return err
	}

	mu := p.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := bundle.Index.DeleteByID(ctx, config.Collection, id); err != nil {
		return fmt.Errorf("pipeline: delete vectors for note %d: %w", id, err)
	}
	return nil
}

// DeleteAll clears the entire collection. Notes and attachments share one
// collection, so this removes both.
func (p *Pipeline) DeleteAll(ctx context.Context) error {
	bundle, err := p.factory.Bundle(ctx)
	if err != nil {
		return err
	}
	if err := bundle.Index.TruncateIndex(ctx, config.Collection); err != nil {
		return fmt.Errorf("pipeline: truncate collection: %w", err)
	}
	return nil
}

// DeleteAllAttachments clears the collection. Attachment vectors are not
// distinguishable from note vectors at collection granularity.
func (p *Pipeline) DeleteAllAttachments(ctx context.Context) error {
	return p.DeleteAll(ctx)
}

// isExcluded reports whether content carries the administrator-configured
// exclude tag. The check is a substring match on the tag's name.
func (p *Pipeline) isExcluded(ctx context.Context, cfg *config.Config, content string) (bool, error) {
	if cfg.ExcludeEmbeddingTagID == 0 {
		return false, nil
	}
	tag, err := p.store.TagByID(ctx, cfg.ExcludeEmbeddingTagID)
	if err != nil {
		return false, fmt.Errorf("pipeline: load exclude tag %d: %w", cfg.ExcludeEmbeddingTagID, err)
	}
	if tag == nil || tag.Name == "" {
		return false, nil
	}
	return strings.Contains(content, tag.Name), nil
}

// embedAndUpsert embeds all chunks in one batched call and upserts the
// resulting vectors with {text, documentId} metadata. Empty content is a
// no-op.
func (p *Pipeline) embedAndUpsert(ctx context.Context, bundle *provider.Bundle, id int64, chunks []string) error {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			texts = append(texts, c)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	embeddings, err := bundle.Embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("pipeline: embed %d chunks for note %d: %w", len(texts), id, err)
	}
	p.metrics.ChunksEmbeddedTotal.Add(float64(len(texts)))

	metadata := make([]vector.Metadata, len(texts))
	for i, text := range texts {
		metadata[i] = vector.Metadata{Text: text, DocumentID: id}
	}
	if err := bundle.Index.Upsert(ctx, config.Collection, embeddings, metadata); err != nil {
		return fmt.Errorf("pipeline: upsert vectors for note %d: %w", id, err)
	}
	return nil
}
