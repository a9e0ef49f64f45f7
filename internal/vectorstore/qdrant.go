package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

const (
	payloadDocumentID = "document_id"
	payloadChunkIndex = "chunk_index"
)

// QdrantStore implements VectorStore using Qdrant.
// The collection uses Euclid distance so scores equal pgvector's <-> distance.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a new Qdrant vector store client
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the collection and its document_id payload index
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      payloadDocumentID,
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index document_id: %w", err)
	}

	return nil
}

// Upsert inserts or updates chunk vectors. Point ids are chunk ids.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []*repository.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(chunk.ID)),
			Vectors: qdrant.NewVectors(chunk.Embedding...),
			Payload: map[string]*qdrant.Value{
				payloadDocumentID: qdrant.NewValueInt(chunk.DocumentID),
				payloadChunkIndex: qdrant.NewValueInt(int64(chunk.Index)),
			},
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// NearestChunks performs similarity search restricted to one document
func (s *QdrantStore) NearestChunks(ctx context.Context, documentID int64, embedding []float32, limit int) ([]repository.VectorMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt(payloadDocumentID, documentID),
			},
		},
		Limit: qdrant.PtrOf(uint64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]repository.VectorMatch, 0, len(response))
	for _, point := range response {
		matches = append(matches, repository.VectorMatch{
			ChunkID:  int64(point.Id.GetNum()),
			Distance: float64(point.Score),
		})
	}

	return matches, nil
}

// DeleteDocument removes chunks by document ID
func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID int64) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatchInt(payloadDocumentID, documentID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete by document ID: %w", err)
	}

	return nil
}

// Ensure QdrantStore implements VectorStore
var _ VectorStore = (*QdrantStore)(nil)
