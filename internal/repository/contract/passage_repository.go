package contract

import (
	"context"

	"zara-assistant-be/pkg/rag"
)

// PassageRepository runs similarity search over doc_chunks.
type PassageRepository interface {
	// Search returns up to k passages for the tenant ordered by descending
	// cosine similarity. fileID narrows the search when non-empty.
	Search(ctx context.Context, tenantID string, embedding []float32, k int, fileID string) ([]rag.Passage, error)
	Ping(ctx context.Context) error
}
