package implementation

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"zara-assistant-be/internal/repository/contract"
)

const (
	summaryCacheKey = "catalog:summary"
	maxDocTypes     = 8
)

type CatalogRepositoryImpl struct {
	db    *gorm.DB
	cache *gocache.Cache
}

// NewCatalogRepository caches the rendered summary for ttl. The counts only
// change when documents are ingested.
func NewCatalogRepository(db *gorm.DB, ttl time.Duration) contract.CatalogRepository {
	return &CatalogRepositoryImpl{
		db:    db,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *CatalogRepositoryImpl) Stats(ctx context.Context) (*contract.CatalogStats, error) {
	stats := &contract.CatalogStats{}
	db := r.db.WithContext(ctx)

	counts := []struct {
		table string
		dst   *int64
	}{
		{"folders", &stats.Folders},
		{"files", &stats.Files},
		{"production_timeseries", &stats.ProductionRecords},
		{"users", &stats.Users},
	}
	for _, c := range counts {
		if err := db.Table(c.table).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	var docTypes []struct {
		DocType string
		Count   int64
	}
	err := db.Table("file_metadata fm").
		Select("fm.doc_type, COUNT(*) AS count").
		Joins("JOIN files f ON f.id = fm.file_id").
		Where("fm.doc_type IS NOT NULL").
		Group("fm.doc_type").
		Order("count DESC").
		Limit(maxDocTypes).
		Scan(&docTypes).Error
	if err != nil {
		return nil, fmt.Errorf("doc_type distribution: %w", err)
	}
	for _, d := range docTypes {
		stats.DocTypes = append(stats.DocTypes, contract.DocTypeCount{DocType: d.DocType, Count: d.Count})
	}
	return stats, nil
}

func (r *CatalogRepositoryImpl) ContextSummary(ctx context.Context) (string, error) {
	return r.cachedSummary(ctx, r.Stats)
}

func (r *CatalogRepositoryImpl) cachedSummary(ctx context.Context, load func(context.Context) (*contract.CatalogStats, error)) (string, error) {
	if v, ok := r.cache.Get(summaryCacheKey); ok {
		return v.(string), nil
	}

	stats, err := load(ctx)
	if err != nil {
		return "", err
	}

	summary := RenderSummary(stats)
	r.cache.SetDefault(summaryCacheKey, summary)
	return summary, nil
}

// RenderSummary formats stats as the database block used in prompts.
func RenderSummary(stats *contract.CatalogStats) string {
	var sb strings.Builder
	sb.WriteString("Knowledge base contents:\n")
	fmt.Fprintf(&sb, "- %d folders, %d files\n", stats.Folders, stats.Files)
	fmt.Fprintf(&sb, "- %d monthly production records (oil, gas, water by block and well)\n", stats.ProductionRecords)
	fmt.Fprintf(&sb, "- %d users\n", stats.Users)

	if len(stats.DocTypes) > 0 {
		parts := make([]string, len(stats.DocTypes))
		for i, d := range stats.DocTypes {
			parts[i] = fmt.Sprintf("%s (%d)", d.DocType, d.Count)
		}
		sb.WriteString("- Document types: " + strings.Join(parts, ", ") + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
