package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mint-radar/agent/internal/models"
	"mint-radar/shared/persist"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentStore keeps engine documents as JSONB rows in state_documents.
type DocumentStore struct {
	db *gorm.DB
}

var _ persist.Backend = (*DocumentStore)(nil)

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Load(ctx context.Context, name string, v any) error {
	var doc models.StateDocument
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return persist.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load document %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(doc.Body), v); err != nil {
		return fmt.Errorf("%w: %s: %v", persist.ErrCorrupt, name, err)
	}
	return nil
}

func (s *DocumentStore) Save(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", name, err)
	}
	doc := models.StateDocument{Name: name, Body: string(body), UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}
	return nil
}
