// Package retrieval implements the scored retrieval ranker: it embeds a
// query, ranks candidates from the vector index, and hydrates full notes
// scoped to the requesting owner.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/metrics"
	"github.com/blinko-space/blinko-ai/internal/note"
	"github.com/blinko-space/blinko-ai/internal/provider"
)

// Result pairs a hydrated note with its retrieval score.
type Result struct {
	Note  note.Note
	Score float64
}

// Ranker embeds queries and ranks vector index candidates. Safe for
// concurrent use.
type Ranker struct {
	factory provider.Bundler
	store   note.Store
	metrics *metrics.Metrics
}

// New constructs a Ranker from the provided dependencies.
func New(factory provider.Bundler, store note.Store, m *metrics.Metrics) (*Ranker, error) {
	if factory == nil {
		return nil, fmt.Errorf("retrieval: factory must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("retrieval: metrics must not be nil")
	}
	return &Ranker{factory: factory, store: store, metrics: m}, nil
}

// Retrieve embeds the query, ranks candidates, and hydrates the matching
// notes owned by ownerID. topK and minScore fall back to the configured
// defaults when zero or negative.
//
// Ranking policy, applied in order:
//  1. candidates whose score does not strictly exceed minScore are dropped;
//  2. survivors are re-sorted ascending by score;
//  3. duplicates per note id (one note contributes one candidate per chunk)
//     are collapsed keeping the best score;
//  4. notes are hydrated with an explicit ownership predicate — candidates
//     whose note is missing or owned by someone else are dropped silently,
//     as that is the tenant boundary.
func (r *Ranker) Retrieve(ctx context.Context, query string, topK int, minScore float64, ownerID int64) ([]Result, error) {
	start := time.Now()
	results, err := r.retrieve(ctx, query, topK, minScore, ownerID)
	r.metrics.RetrievalDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	r.metrics.RetrievalsTotal.WithLabelValues("ok").Inc()
	return results, nil
}

// RetrieveForChat is the wide-candidate variant used to build chat context:
// it queries more candidates and applies the lower chat threshold before
// hydration.
func (r *Ranker) RetrieveForChat(ctx context.Context, query string, ownerID int64) ([]Result, error) {
	bundle, err := r.factory.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	return r.Retrieve(ctx, query, config.ChatTopK, bundle.Config.ChatMinScore(), ownerID)
}

func (r *Ranker) retrieve(ctx context.Context, query string, topK int, minScore float64, ownerID int64) ([]Result, error) {
	bundle, err := r.factory.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = bundle.Config.TopK()
	}
	if minScore <= 0 {
		minScore = bundle.Config.MinScore()
	}

	embeddings, err := bundle.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("retrieval: embedder returned no vector for query")
	}

	matches, err := bundle.Index.Query(ctx, config.Collection, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector query: %w", err)
	}

	// Strict threshold: a score exactly equal to minScore is excluded.
	kept := matches[:0]
	for _, m := range matches {
		if m.Score > minScore {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score < kept[j].Score })

	// Collapse chunk-level duplicates, keeping the best score per note.
	best := make(map[int64]float64, len(kept))
	order := make([]int64, 0, len(kept))
	for _, m := range kept {
		id := m.Metadata.DocumentID
		if prev, ok := best[id]; ok {
			if m.Score > prev {
				best[id] = m.Score
			}
			continue
		}
		best[id] = m.Score
		order = append(order, id)
	}

	notes, err := r.store.NotesForOwner(ctx, order, ownerID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: hydrate notes: %w", err)
	}
	byID := make(map[int64]note.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		n, ok := byID[id]
		if !ok {
			continue
		}
		results = append(results, Result{Note: n, Score: best[id]})
	}
	return results, nil
}
