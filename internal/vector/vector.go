// Package vector defines the vector index abstraction used by the embedding
// pipeline and retrieval ranker, plus its concrete backends: an embedded
// SQLite store (default) and Qdrant (server deployments). All operations are
// addressed to one named collection; notes and attachments share it.
package vector

import (
	"context"
	"errors"
)

// ErrNotFound is returned by DeleteByID when no stored vector carries the
// requested document id. It signals an index/document-store inconsistency
// and is surfaced, never swallowed.
var ErrNotFound = errors.New("vector: document id not found")

// Metadata is the payload stored alongside every vector row.
type Metadata struct {
	// Text is the chunk text this vector was computed from.
	Text string `json:"text"`

	// DocumentID is the id of the source document the chunk belongs to.
	DocumentID int64 `json:"documentId"`
}

// Match is a nearest-neighbour search hit.
type Match struct {
	// Metadata is the stored payload of the matched vector.
	Metadata Metadata

	// Score is the cosine similarity between the query and the stored
	// vector. Callers apply their own threshold and ordering policy.
	Score float64
}

// Index is the contract for a named vector collection. Implementations must
// be safe for concurrent use.
type Index interface {
	// CreateIndex idempotently provisions a collection of the given width.
	// Re-creating an existing collection with a different width fails.
	CreateIndex(ctx context.Context, name string, dimensions int) error

	// Upsert stores vectors with positionally paired metadata. Vectors whose
	// length differs from the collection width are rejected, never padded or
	// truncated.
	Upsert(ctx context.Context, name string, vectors [][]float32, metadata []Metadata) error

	// Query returns the topK nearest neighbours of vector. Result ordering
	// is backend-defined; callers re-sort per their own policy.
	Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error)

	// DeleteByID removes every vector whose metadata document id equals
	// documentID and returns the deleted payloads. Zero matches is an
	// ErrNotFound, not a no-op.
	DeleteByID(ctx context.Context, name string, documentID int64) ([]Metadata, error)

	// TruncateIndex removes all rows but keeps the collection.
	TruncateIndex(ctx context.Context, name string) error

	// DeleteIndex drops the collection entirely. Used on full rebuild.
	DeleteIndex(ctx context.Context, name string) error

	// Close releases backend resources.
	Close() error
}
