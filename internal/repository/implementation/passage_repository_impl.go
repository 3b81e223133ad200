package implementation

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"zara-assistant-be/internal/model"
	"zara-assistant-be/internal/repository/contract"
	"zara-assistant-be/internal/repository/specification"
	"zara-assistant-be/pkg/rag"
)

const defaultSearchLimit = 6

type PassageRepositoryImpl struct {
	db *gorm.DB
}

func NewPassageRepository(db *gorm.DB) contract.PassageRepository {
	return &PassageRepositoryImpl{db: db}
}

type scoredChunk struct {
	Id         string
	FileId     string
	Page       int
	Section    string
	Text       string
	Similarity float64
}

func (r *PassageRepositoryImpl) Search(ctx context.Context, tenantID string, embedding []float32, k int, fileID string) ([]rag.Passage, error) {
	if k <= 0 {
		k = defaultSearchLimit
	}

	// pgvector cosine distance is 1 - cosine similarity
	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Model(&model.DocChunk{}).
		Select("id, file_id, page, section, text, 1 - (embedding <=> ?) AS similarity", queryVector)
	query = specification.All{
		specification.ByTenant{TenantID: tenantID},
		specification.ByFileID{FileID: fileID},
		specification.OrderBy{Field: "similarity", Desc: true},
		specification.Limit{N: k},
	}.Apply(query)

	var rows []scoredChunk
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search doc_chunks: %w", err)
	}

	passages := make([]rag.Passage, len(rows))
	for i, row := range rows {
		passages[i] = rag.Passage{
			SourceID:   row.Id,
			FileID:     row.FileId,
			Text:       row.Text,
			Page:       row.Page,
			Section:    row.Section,
			Similarity: row.Similarity,
		}
	}
	return passages, nil
}

func (r *PassageRepositoryImpl) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
