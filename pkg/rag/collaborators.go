package rag

import "context"

// Retriever finds the passages most similar to an embedding, ordered by
// descending similarity. fileID narrows the search when non-empty.
type Retriever interface {
	Search(ctx context.Context, tenantID string, embedding []float32, k int, fileID string) ([]Passage, error)
}

// ContextProvider summarizes what the data store holds for the prompts.
type ContextProvider interface {
	ContextSummary(ctx context.Context) (string, error)
}

// FallbackContextSummary is used when the data store cannot be summarized.
const FallbackContextSummary = "The knowledge base contains exploration and production documents (reports, well logs, seismic data) and monthly production records by block and well."
