package rebuild

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/files"
	"github.com/blinko-space/blinko-ai/internal/metrics"
	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/pipeline"
	"github.com/blinko-space/blinko-ai/internal/provider"
	"github.com/blinko-space/blinko-ai/internal/vector"
)

const testDims = 8

// embedText maps text to a deterministic bag-of-words vector.
func embedText(s string) []float32 {
	v := make([]float32, testDims)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%testDims]++
	}
	return v
}

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

// harness bundles the pieces a rebuild run touches.
type harness struct {
	store       *note.SQLiteStore
	index       vector.Index
	coordinator *Coordinator
	filesRoot   string
}

func newHarness(t *testing.T, emb *fakeEmbedder) *harness {
	t.Helper()
	idx, err := vector.Open(":memory:")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.CreateIndex(context.Background(), config.Collection, testDims); err != nil {
		t.Fatalf("create collection: %v", err)
	}

	store, err := note.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	md, _ := provider.NewSplitters()
	// The production token splitter fetches tokenizer data on first use;
	// tests use a character splitter to stay hermetic.
	tok := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(512),
		textsplitter.WithChunkOverlap(64),
	)
	bundler := &provider.StaticBundler{B: &provider.Bundle{
		Config:           &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true},
		Embedder:         emb,
		Index:            idx,
		Dimensions:       testDims,
		MarkdownSplitter: md,
		TokenSplitter:    tok,
	}}

	root := t.TempDir()
	m := metrics.New(prometheus.NewRegistry())
	p, err := pipeline.New(bundler, store, files.NewLocalResolver(root), m)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	c, err := New(bundler, store, p, m)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return &harness{store: store, index: idx, coordinator: c, filesRoot: root}
}

// collect drains a rebuild run into a slice.
func collect(t *testing.T, c *Coordinator, force bool) []Event {
	t.Helper()
	var events []Event
	for ev := range c.Rebuild(context.Background(), force) {
		events = append(events, ev)
	}
	return events
}

func Test_Rebuild_ProgressSpansBatches(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeEmbedder{})
	ctx := context.Background()

	// Seven notes: two batches of five and two.
	for i := range 7 {
		if _, err := h.store.CreateNote(ctx, 1, fmt.Sprintf("note number %d body", i)); err != nil {
			t.Fatalf("create note %d: %v", i, err)
		}
	}

	events := collect(t, h.coordinator, false)
	if len(events) != 7 {
		t.Fatalf("want 7 events, got %d: %+v", len(events), events)
	}
	for i, ev := range events {
		if ev.Kind != KindSuccess {
			t.Errorf("event %d: want success, got %q (err %v)", i, ev.Kind, ev.Err)
		}
		if ev.Progress.Total != 7 || ev.Progress.Current != i+1 {
			t.Errorf("event %d: want progress %d/7, got %d/%d",
				i, i+1, ev.Progress.Current, ev.Progress.Total)
		}
	}
}

func Test_Rebuild_SkipsIndexedUnlessForced(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeEmbedder{})
	ctx := context.Background()

	done, err := h.store.CreateNote(ctx, 1, "already embedded earlier")
	if err != nil {
		t.Fatalf("create done: %v", err)
	}
	if err := h.store.MarkIndexed(ctx, done.ID, false, done.UpdatedAt); err != nil {
		t.Fatalf("mark indexed: %v", err)
	}
	if _, err := h.store.CreateNote(ctx, 1, "fresh note pending indexing"); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	events := collect(t, h.coordinator, false)
	if len(events) != 2 {
		t.Fatalf("want 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != KindSkip {
		t.Errorf("indexed note: want skip, got %q", events[0].Kind)
	}
	if events[1].Kind != KindSuccess {
		t.Errorf("fresh note: want success, got %q", events[1].Kind)
	}
	// A skipped note still advances the counter.
	if events[1].Progress.Current != 2 || events[1].Progress.Total != 2 {
		t.Errorf("want progress 2/2, got %d/%d",
			events[1].Progress.Current, events[1].Progress.Total)
	}
}

func Test_Rebuild_PerItemErrorContinues(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeEmbedder{failOn: "poison"})
	ctx := context.Background()

	if _, err := h.store.CreateNote(ctx, 1, "fine before the failure"); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := h.store.CreateNote(ctx, 1, "this poison note cannot embed"); err != nil {
		t.Fatalf("create poisoned: %v", err)
	}
	if _, err := h.store.CreateNote(ctx, 1, "fine after the failure"); err != nil {
		t.Fatalf("create last: %v", err)
	}

	events := collect(t, h.coordinator, false)
	if len(events) != 3 {
		t.Fatalf("want 3 events, got %d: %+v", len(events), events)
	}
	wantKinds := []Kind{KindSuccess, KindError, KindSuccess}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Errorf("event %d: want %q, got %q (err %v)", i, want, events[i].Kind, events[i].Err)
		}
	}
	if events[1].Err == nil {
		t.Error("error event must carry its cause")
	}
}

func Test_Rebuild_ForceReembedsEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeEmbedder{})
	ctx := context.Background()

	n, err := h.store.CreateNote(ctx, 1, "note that was indexed long ago")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := h.store.MarkIndexed(ctx, n.ID, false, n.UpdatedAt); err != nil {
		t.Fatalf("mark indexed: %v", err)
	}

	events := collect(t, h.coordinator, true)
	if len(events) != 1 || events[0].Kind != KindSuccess {
		t.Fatalf("force must re-embed indexed notes, got %+v", events)
	}

	matches, err := h.index.Query(ctx, config.Collection, embedText(n.Content), 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 || matches[0].Metadata.DocumentID != n.ID {
		t.Fatalf("rebuilt collection missing the note: %+v", matches)
	}

	// A second forced run reproduces the same coverage.
	events = collect(t, h.coordinator, true)
	if len(events) != 1 || events[0].Kind != KindSuccess {
		t.Fatalf("second forced run: %+v", events)
	}
	matches, err = h.index.Query(ctx, config.Collection, embedText(n.Content), 10)
	if err != nil {
		t.Fatalf("requery: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("want one generation after repeated force, got %d", len(matches))
	}
}

func Test_Rebuild_ConsumerBreakStopsRun(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeEmbedder{})
	ctx := context.Background()

	for i := range 4 {
		if _, err := h.store.CreateNote(ctx, 1, fmt.Sprintf("note %d", i)); err != nil {
			t.Fatalf("create note %d: %v", i, err)
		}
	}

	seen := 0
	for range h.coordinator.Rebuild(ctx, false) {
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("want 1 event before break, got %d", seen)
	}

	// Only the first note was touched before the consumer stopped.
	got, err := h.store.Note(ctx, 2)
	if err != nil {
		t.Fatalf("fetch second note: %v", err)
	}
	if got.IsIndexed {
		t.Error("notes past the break must stay unprocessed")
	}
}

func Test_Rebuild_EmptyContentStillProcessesAttachments(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeEmbedder{})
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(h.filesRoot, "scan%20one.txt"),
		[]byte("scanned receipt from the hardware store"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	n, err := h.store.CreateNote(ctx, 1, "")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if _, err := h.store.AddAttachment(ctx, n.ID, "scan%20one.txt"); err != nil {
		t.Fatalf("add attachment: %v", err)
	}

	events := collect(t, h.coordinator, false)
	if len(events) != 1 {
		t.Fatalf("want only the attachment event, got %+v", events)
	}
	if events[0].Kind != KindSuccess {
		t.Fatalf("attachment event: %+v", events[0])
	}
	if events[0].Label != "scan one.txt" {
		t.Errorf("label must decode percent-escapes, got %q", events[0].Label)
	}
}

func Test_Truncate_CountsRunes(t *testing.T) {
	t.Parallel()

	if got := truncate("héllo wörld, this is a long note body", labelLen); len([]rune(got)) != labelLen {
		t.Errorf("want %d runes, got %d (%q)", labelLen, len([]rune(got)), got)
	}
	if got := truncate("short", labelLen); got != "short" {
		t.Errorf("short input must pass through, got %q", got)
	}
}
