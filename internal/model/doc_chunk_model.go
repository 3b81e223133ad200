package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// DocChunk is one embedded slice of an ingested document.
type DocChunk struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FileId    string          `gorm:"type:text;not null;index"`
	TenantId  string          `gorm:"type:text;not null;index"`
	Page      int             `gorm:"default:0"`
	Section   string          `gorm:"type:text"`
	Checksum  string          `gorm:"type:text;index"`
	Text      string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector(1024)"` // mxbai-embed-large
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (DocChunk) TableName() string {
	return "doc_chunks"
}
