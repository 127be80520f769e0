package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/files"
	"github.com/blinko-space/blinko-ai/internal/metrics"
	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/provider"
	"github.com/blinko-space/blinko-ai/internal/vector"
)

// testDims is the embedding width used by the fake embedder.
const testDims = 8

// embedText maps text to a deterministic bag-of-words vector so identical
// texts embed identically and similar texts score high.
func embedText(s string) []float32 {
	v := make([]float32, testDims)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%testDims]++
	}
	return v
}

// fakeEmbedder is a deterministic Embedder with optional failure injection.
type fakeEmbedder struct {
	// failOn makes Embed fail for any text containing the substring.
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, fmt.Errorf("embed refused for %q", f.failOn)
		}
		out[i] = embedText(t)
	}
	return out, nil
}

// testBundle assembles a bundle over an in-memory index and the fake embedder.
func testBundle(t *testing.T, cfg *config.Config, emb *fakeEmbedder) *provider.Bundle {
	t.Helper()
	idx, err := vector.Open(":memory:")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.CreateIndex(context.Background(), config.Collection, testDims); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	md, _ := provider.NewSplitters()
	// The production token splitter fetches tokenizer data on first use;
	// tests use a character splitter to stay hermetic.
	tok := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(512),
		textsplitter.WithChunkOverlap(64),
	)
	return &provider.Bundle{
		Config:           cfg,
		Embedder:         emb,
		Index:            idx,
		Dimensions:       testDims,
		MarkdownSplitter: md,
		TokenSplitter:    tok,
	}
}

// testPipeline wires a Pipeline over an in-memory store and the given bundle.
func testPipeline(t *testing.T, bundle *provider.Bundle) (*Pipeline, *note.SQLiteStore) {
	t.Helper()
	store, err := note.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p, err := New(&provider.StaticBundler{B: bundle}, store,
		files.NewLocalResolver(t.TempDir()), metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, store
}

func Test_Pipeline_UpsertNoteIndexesContent(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true}
	bundle := testBundle(t, cfg, &fakeEmbedder{})
	p, store := testPipeline(t, bundle)
	ctx := context.Background()

	n, err := store.CreateNote(ctx, 1, "watering schedule for the garden")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := p.UpsertNote(ctx, n.ID, n.Content, ModeInsert, n.UpdatedAt); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := bundle.Index.Query(ctx, config.Collection, embedText(n.Content), 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) == 0 || matches[0].Metadata.DocumentID != n.ID {
		t.Fatalf("indexed note not retrievable: %+v", matches)
	}

	got, err := store.Note(ctx, n.ID)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if !got.IsIndexed {
		t.Error("note not marked indexed")
	}
}

func Test_Pipeline_ExcludeTagSkipsEmbedding(t *testing.T) {
	t.Parallel()
	bundle := testBundle(t, &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true}, &fakeEmbedder{})
	p, store := testPipeline(t, bundle)
	ctx := context.Background()

	tag, err := store.AddTag(ctx, "#private")
	if err != nil {
		t.Fatalf("add tag: %v", err)
	}
	bundle.Config.ExcludeEmbeddingTagID = tag.ID

	n, err := store.CreateNote(ctx, 1, "diary entry #private keep out")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := p.UpsertNote(ctx, n.ID, n.Content, ModeInsert, n.UpdatedAt); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := bundle.Index.Query(ctx, config.Collection, embedText(n.Content), 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("excluded note must not be embedded, got %d vectors", len(matches))
	}
}

func Test_Pipeline_UpdateLeavesOneGeneration(t *testing.T) {
	t.Parallel()
	bundle := testBundle(t, &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true}, &fakeEmbedder{})
	p, store := testPipeline(t, bundle)
	ctx := context.Background()

	n, err := store.CreateNote(ctx, 1, "first version of the note")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := p.UpsertNote(ctx, n.ID, n.Content, ModeInsert, n.UpdatedAt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := p.UpsertNote(ctx, n.ID, "second version entirely rewritten", ModeUpdate, n.UpdatedAt); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := p.UpsertNote(ctx, n.ID, "third version rewritten again", ModeUpdate, n.UpdatedAt); err != nil {
		t.Fatalf("second update: %v", err)
	}

	deleted, err := bundle.Index.DeleteByID(ctx, config.Collection, n.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, meta := range deleted {
		if !strings.Contains(meta.Text, "third version") {
			t.Errorf("stale generation survived: %q", meta.Text)
		}
	}
}

// failingFlagStore wraps a Store and fails every MarkIndexed call.
type failingFlagStore struct {
	note.Store
}

func (f *failingFlagStore) MarkIndexed(context.Context, int64, bool, time.Time) error {
	return errors.New("flag write refused")
}

func Test_Pipeline_FlagFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	bundle := testBundle(t, &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true}, &fakeEmbedder{})
	store, err := note.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p, err := New(&provider.StaticBundler{B: bundle}, &failingFlagStore{Store: store},
		files.NewLocalResolver(t.TempDir()), metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	ctx := context.Background()

	n, err := store.CreateNote(ctx, 1, "content whose flag write will fail")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := p.UpsertNote(ctx, n.ID, n.Content, ModeInsert, n.UpdatedAt); err != nil {
		t.Fatalf("the vector write is the operation of record; flag failure must be swallowed: %v", err)
	}

	matches, err := bundle.Index.Query(ctx, config.Collection, embedText(n.Content), 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 {
		t.Error("vectors must persist despite the flag failure")
	}
}

func Test_Pipeline_DeleteNoteNotFoundSurfaces(t *testing.T) {
	t.Parallel()
	bundle := testBundle(t, &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true}, &fakeEmbedder{})
	p, _ := testPipeline(t, bundle)

	err := p.DeleteNote(context.Background(), 123)
	if !errors.Is(err, vector.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func Test_Pipeline_UpsertAttachment(t *testing.T) {
	t.Parallel()
	bundle := testBundle(t, &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true}, &fakeEmbedder{})

	store, err := note.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "minutes.txt"), []byte("meeting minutes from tuesday"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	p, err := New(&provider.StaticBundler{B: bundle}, store,
		files.NewLocalResolver(root), metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	ctx := context.Background()

	n, err := store.CreateNote(ctx, 1, "")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := p.UpsertAttachment(ctx, n.ID, "minutes.txt", n.UpdatedAt); err != nil {
		t.Fatalf("upsert attachment: %v", err)
	}

	matches, err := bundle.Index.Query(ctx, config.Collection, embedText("meeting minutes from tuesday"), 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 || matches[0].Metadata.DocumentID != n.ID {
		t.Fatalf("attachment not indexed under its note: %+v", matches)
	}

	got, err := store.Note(ctx, n.ID)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if !got.IsAttachmentsIndexed {
		t.Error("attachments flag not set")
	}
}

func Test_Pipeline_DeleteAllTruncates(t *testing.T) {
	t.Parallel()
	bundle := testBundle(t, &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true}, &fakeEmbedder{})
	p, store := testPipeline(t, bundle)
	ctx := context.Background()

	n, err := store.CreateNote(ctx, 1, "soon to vanish")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := p.UpsertNote(ctx, n.ID, n.Content, ModeInsert, n.UpdatedAt); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := p.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	matches, err := bundle.Index.Query(ctx, config.Collection, embedText(n.Content), 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("want empty collection, got %d rows", len(matches))
	}
}
