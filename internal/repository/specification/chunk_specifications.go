package specification

import "gorm.io/gorm"

// ByTenant filters doc_chunks to one tenant
type ByTenant struct {
	TenantID string
}

func (s ByTenant) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("tenant_id = ?", s.TenantID)
}

// ByFileID narrows to one file. An empty FileID matches every file.
type ByFileID struct {
	FileID string
}

func (s ByFileID) Apply(db *gorm.DB) *gorm.DB {
	if s.FileID == "" {
		return db
	}
	return db.Where("file_id = ?", s.FileID)
}
