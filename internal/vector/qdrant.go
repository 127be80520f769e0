package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant deployment. Useful when
// the note store outgrows the embedded SQLite scan.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client
}

// payload field names stored with every point.
const (
	payloadText       = "text"
	payloadDocumentID = "documentId"
)

// NewQdrantIndex creates a QdrantIndex connected to the configured instance.
func NewQdrantIndex(cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: qdrant client: %w", err)
	}

	return &QdrantIndex{client: client}, nil
}

// CreateIndex idempotently provisions a collection of the given width.
func (s *QdrantIndex) CreateIndex(ctx context.Context, name string, dimensions int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vector: qdrant collection check: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions), //nolint:gosec // dimensions are bounded by the lookup table
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vector: qdrant create collection %q: %w", name, err)
	}
	return nil
}

// Upsert stores vectors with positionally paired metadata.
func (s *QdrantIndex) Upsert(ctx context.Context, name string, vectors [][]float32, metadata []Metadata) error {
	if len(vectors) != len(metadata) {
		return fmt.Errorf("vector: upsert: %d vectors but %d metadata entries", len(vectors), len(metadata))
	}

	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for i, v := range vectors {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(v...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadText:       metadata[i].Text,
				payloadDocumentID: metadata[i].DocumentID,
			}),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("vector: qdrant upsert: %w", err)
	}
	return nil
}

// Query performs a cosine similarity search and returns the top-k matches.
func (s *QdrantIndex) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	limit := uint64(topK) //nolint:gosec // topK is a small positive count
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vector: qdrant query: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := Match{Score: float64(r.Score)}
		if p := r.Payload; p != nil {
			if v, ok := p[payloadText]; ok {
				m.Metadata.Text = v.GetStringValue()
			}
			if v, ok := p[payloadDocumentID]; ok {
				m.Metadata.DocumentID = v.GetIntegerValue()
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// documentFilter matches all points carrying the given document id.
func documentFilter(documentID int64) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchInt(payloadDocumentID, documentID),
		},
	}
}

// scrollPageSize bounds one scroll page during DeleteByID. Without an
// explicit limit the server caps pages at its own small default and the
// deleted payloads would be under-reported for large documents.
const scrollPageSize = uint32(1024)

// DeleteByID removes every point for the document id and returns the deleted
// payloads. Pages are scrolled and deleted until the filter matches nothing,
// so documents with more chunks than one page are fully accounted for. Zero
// matches surfaces ErrNotFound.
func (s *QdrantIndex) DeleteByID(ctx context.Context, name string, documentID int64) ([]Metadata, error) {
	filter := documentFilter(documentID)
	limit := scrollPageSize

	var deleted []Metadata
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Filter:         filter,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("vector: qdrant scroll for id %d: %w", documentID, err)
		}
		if len(points) == 0 {
			break
		}

		ids := make([]*qdrant.PointId, 0, len(points))
		for _, p := range points {
			var m Metadata
			if pl := p.Payload; pl != nil {
				if v, ok := pl[payloadText]; ok {
					m.Text = v.GetStringValue()
				}
				if v, ok := pl[payloadDocumentID]; ok {
					m.DocumentID = v.GetIntegerValue()
				}
			}
			deleted = append(deleted, m)
			ids = append(ids, p.Id)
		}

		if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Points:         qdrant.NewPointsSelector(ids...),
		}); err != nil {
			return nil, fmt.Errorf("vector: qdrant delete by id %d: %w", documentID, err)
		}
	}

	if len(deleted) == 0 {
		return nil, fmt.Errorf("vector: delete by id %d in %q: %w", documentID, name, ErrNotFound)
	}
	return deleted, nil
}

// TruncateIndex removes all points but keeps the collection.
func (s *QdrantIndex) TruncateIndex(ctx context.Context, name string) error {
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{}),
	}); err != nil {
		return fmt.Errorf("vector: qdrant truncate %q: %w", name, err)
	}
	return nil
}

// DeleteIndex drops the collection entirely.
func (s *QdrantIndex) DeleteIndex(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("vector: qdrant delete collection %q: %w", name, err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}
