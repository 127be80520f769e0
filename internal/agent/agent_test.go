package agent

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/metrics"
	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/notify"
	"github.com/blinko-space/blinko-ai/internal/provider"
	"github.com/blinko-space/blinko-ai/internal/retrieval"
	"github.com/blinko-space/blinko-ai/internal/vector"
)

// fakeModel replays canned responses and records every message slice it was
// invoked with.
type fakeModel struct {
	reply  string
	chunks []string
	got    [][]*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = append(f.got, msgs)
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.got = append(f.got, msgs)
	out := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		out = append(out, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(out), nil
}

func (f *fakeModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// stubIndex serves canned matches for chat context retrieval.
type stubIndex struct {
	vector.Index
	matches []vector.Match
}

func (s *stubIndex) Query(context.Context, string, []float32, int) ([]vector.Match, error) {
	return s.matches, nil
}

// recordingNotifier captures dispatched notifications.
type recordingNotifier struct {
	ownerID int64
	kind    notify.Kind
	calls   int
}

func (r *recordingNotifier) Notify(_ context.Context, ownerID int64, kind notify.Kind) {
	r.ownerID = ownerID
	r.kind = kind
	r.calls++
}

// newOrchestrator wires an Orchestrator over fakes at a fixed mock time.
func newOrchestrator(t *testing.T, fm *fakeModel, idx *stubIndex) (*Orchestrator, *note.SQLiteStore, *recordingNotifier, *clock.Mock) {
	t.Helper()
	store, err := note.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bundler := &provider.StaticBundler{B: &provider.Bundle{
		Config:    &config.Config{AIModelProvider: config.ProviderOpenAI, IsUseAI: true},
		ChatModel: fm,
		Embedder:  stubEmbedder{},
		Index:     idx,
	}}
	ranker, err := retrieval.New(bundler, store, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new ranker: %v", err)
	}

	notifier := &recordingNotifier{}
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC))

	o, err := New(bundler, ranker, store, notifier, mock)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o, store, notifier, mock
}

func Test_Orchestrator_ChatInjectsNoteContext(t *testing.T) {
	t.Parallel()
	fm := &fakeModel{chunks: []string{"Hello ", "world"}}
	idx := &stubIndex{matches: []vector.Match{
		{Metadata: vector.Metadata{Text: "chunk", DocumentID: 1}, Score: 0.9},
	}}
	o, store, _, _ := newOrchestrator(t, fm, idx)
	ctx := context.Background()

	if _, err := store.CreateNote(ctx, 1, "the garden needs watering on fridays"); err != nil {
		t.Fatalf("create note: %v", err)
	}

	var buf bytes.Buffer
	results, err := o.Chat(ctx, nil, "when do I water the garden?", 1, false, &buf)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if buf.String() != "Hello world" {
		t.Errorf("streamed output: want %q, got %q", "Hello world", buf.String())
	}
	if len(results) != 1 || results[0].Note.ID != 1 {
		t.Fatalf("want the matched note as context, got %+v", results)
	}

	if len(fm.got) != 1 {
		t.Fatalf("want one model call, got %d", len(fm.got))
	}
	msgs := fm.got[0]
	if len(msgs) != 3 {
		t.Fatalf("want system, user, context messages; got %d", len(msgs))
	}
	if msgs[0].Role != schema.System || !strings.HasPrefix(msgs[0].Content, "Today is 2025-06-01 09:30:00\n") {
		t.Errorf("leading system message: %q", msgs[0].Content)
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "when do I water the garden?" {
		t.Errorf("question message: %+v", msgs[1])
	}
	want := "This is the note content which search from vector database: the garden needs watering on fridays"
	if msgs[2].Role != schema.System || msgs[2].Content != want {
		t.Errorf("context message: %q", msgs[2].Content)
	}
}

func Test_Orchestrator_ChatKeepsConversationHistory(t *testing.T) {
	t.Parallel()
	fm := &fakeModel{chunks: []string{"ok"}}
	o, _, _, _ := newOrchestrator(t, fm, &stubIndex{})
	ctx := context.Background()

	history := []*schema.Message{
		schema.UserMessage("earlier question"),
		schema.AssistantMessage("earlier answer", nil),
	}
	var buf bytes.Buffer
	if _, err := o.Chat(ctx, history, "follow-up", 1, false, &buf); err != nil {
		t.Fatalf("chat: %v", err)
	}

	msgs := fm.got[0]
	if len(msgs) != 5 {
		t.Fatalf("want 5 messages with history, got %d", len(msgs))
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Errorf("history not preserved in order: %q, %q", msgs[1].Content, msgs[2].Content)
	}
}

func Test_Orchestrator_AutoTagSplitsResponse(t *testing.T) {
	t.Parallel()
	fm := &fakeModel{reply: " #life/garden, #home/chores , ,#planning\n"}
	o, _, _, _ := newOrchestrator(t, fm, &stubIndex{})

	tags, err := o.AutoTag(context.Background(), "water the plants", []string{"#life/garden", "#work"})
	if err != nil {
		t.Fatalf("auto tag: %v", err)
	}
	want := []string{"#life/garden", "#home/chores", "#planning"}
	if len(tags) != len(want) {
		t.Fatalf("want %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tag %d: want %q, got %q", i, want[i], tags[i])
		}
	}

	if !strings.Contains(fm.got[0][0].Content, "#life/garden, #work") {
		t.Errorf("existing vocabulary missing from prompt: %q", fm.got[0][0].Content)
	}
}

func Test_Orchestrator_AutoEmoji(t *testing.T) {
	t.Parallel()
	fm := &fakeModel{reply: "🚀,💻,🔧,📱"}
	o, _, _, _ := newOrchestrator(t, fm, &stubIndex{})

	emojis, err := o.AutoEmoji(context.Background(), "shipped the new release")
	if err != nil {
		t.Fatalf("auto emoji: %v", err)
	}
	if len(emojis) != 4 || emojis[0] != "🚀" {
		t.Fatalf("want 4 emojis starting with 🚀, got %v", emojis)
	}
}

func Test_Orchestrator_WritingUnknownMode(t *testing.T) {
	t.Parallel()
	o, _, _, _ := newOrchestrator(t, &fakeModel{}, &stubIndex{})

	err := o.Writing(context.Background(), WritingMode("summarize"), "q", "c", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown writing mode") {
		t.Fatalf("want unknown mode error, got %v", err)
	}
}

func Test_Orchestrator_WritingStreamsWithNoteContext(t *testing.T) {
	t.Parallel()
	fm := &fakeModel{chunks: []string{"a better ", "draft"}}
	o, _, _, _ := newOrchestrator(t, fm, &stubIndex{})

	var buf bytes.Buffer
	err := o.Writing(context.Background(), WritingPolish, "polish this", "my rough draft", &buf)
	if err != nil {
		t.Fatalf("writing: %v", err)
	}
	if buf.String() != "a better draft" {
		t.Errorf("streamed output: %q", buf.String())
	}

	msgs := fm.got[0]
	if len(msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(msgs))
	}
	if msgs[2].Content != "This is the user's note content: my rough draft" {
		t.Errorf("note context message: %q", msgs[2].Content)
	}
}

func Test_Orchestrator_CommentPersistsAndNotifies(t *testing.T) {
	t.Parallel()
	fm := &fakeModel{reply: "  Great progress on the garden! 🌱  "}
	o, store, notifier, _ := newOrchestrator(t, fm, &stubIndex{})
	ctx := context.Background()

	n, err := store.CreateNote(ctx, 3, "planted the tomatoes today")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}

	comment, err := o.Comment(ctx, n.ID, "please comment on my note")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if comment.AuthorName != "Blinko AI" {
		t.Errorf("author: want %q, got %q", "Blinko AI", comment.AuthorName)
	}
	if comment.Content != "Great progress on the garden! 🌱" {
		t.Errorf("content not trimmed: %q", comment.Content)
	}

	msgs := fm.got[0]
	if msgs[2].Content != "This is the note content: planted the tomatoes today" {
		t.Errorf("note context message: %q", msgs[2].Content)
	}

	if notifier.calls != 1 || notifier.ownerID != 3 || notifier.kind != notify.KindComment {
		t.Errorf("notification: calls=%d owner=%d kind=%q",
			notifier.calls, notifier.ownerID, notifier.kind)
	}
}

func Test_Orchestrator_CommentMissingNote(t *testing.T) {
	t.Parallel()
	o, _, notifier, _ := newOrchestrator(t, &fakeModel{reply: "x"}, &stubIndex{})

	if _, err := o.Comment(context.Background(), 404, "hello"); err == nil {
		t.Fatal("want error for missing note")
	}
	if notifier.calls != 0 {
		t.Error("no notification may be sent when the note is missing")
	}
}
