package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func Test_Snapshot_SumsAcrossLabels(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DocumentsIndexedTotal.WithLabelValues("note", "ok").Add(3)
	m.DocumentsIndexedTotal.WithLabelValues("attachment", "error").Inc()
	m.ChunksEmbeddedTotal.Add(7)
	m.RetrievalDurationSeconds.Observe(0.2)
	m.RetrievalDurationSeconds.Observe(1.4)

	snap, err := Snapshot(reg)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if got := snap["blinko_index_documents_total"]; got != 4 {
		t.Errorf("documents: want label sets summed to 4, got %v", got)
	}
	if got := snap["blinko_index_chunks_embedded_total"]; got != 7 {
		t.Errorf("chunks: want 7, got %v", got)
	}
	if got := snap["blinko_retrieval_duration_seconds"]; got != 2 {
		t.Errorf("histogram: want sample count 2, got %v", got)
	}
}

func Test_Snapshot_OmitsIdleFamilies(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RebuildEventsTotal.WithLabelValues("success").Inc()

	snap, err := Snapshot(reg)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if got := snap["blinko_rebuild_events_total"]; got != 1 {
		t.Errorf("rebuild events: want 1, got %v", got)
	}
	if _, ok := snap["blinko_retrieval_queries_total"]; ok {
		t.Error("a counter that never moved must not appear in the summary")
	}
	if len(snap) != 1 {
		t.Errorf("want only the moved family, got %v", snap)
	}
}
