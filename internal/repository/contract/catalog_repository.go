package contract

import "context"

type DocTypeCount struct {
	DocType string
	Count   int64
}

// CatalogStats is a snapshot of what the knowledge base holds.
type CatalogStats struct {
	Folders           int64
	Files             int64
	ProductionRecords int64
	Users             int64
	DocTypes          []DocTypeCount
}

type CatalogRepository interface {
	Stats(ctx context.Context) (*CatalogStats, error)
	// ContextSummary renders Stats as a short block for prompts.
	ContextSummary(ctx context.Context) (string, error)
}
