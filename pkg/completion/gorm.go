package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionRecord is the persisted completion list of one identity.
type CompletionRecord struct {
	StorageKey string    `gorm:"column:storage_key;primaryKey;type:varchar(191)"`
	SurveyIDs  string    `gorm:"column:survey_ids;type:text;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

// TableName implements the GORM tabler interface.
func (CompletionRecord) TableName() string { return "survey_completions" }

// GormBackend stores completion lists in a SQL table, one row per identity key.
type GormBackend struct {
	db *gorm.DB
}

var _ Backend = (*GormBackend)(nil)

// NewGormBackend migrates the completions table and returns the backend.
func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("completion: gorm db is nil")
	}
	if err := db.AutoMigrate(&CompletionRecord{}); err != nil {
		return nil, fmt.Errorf("completion: migrate %s: %w", CompletionRecord{}.TableName(), err)
	}
	return &GormBackend{db: db}, nil
}

func (g *GormBackend) Load(ctx context.Context, key string) ([]string, error) {
	var rec CompletionRecord
	res := g.db.WithContext(ctx).Where("storage_key = ?", key).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, fmt.Errorf("load %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(rec.SurveyIDs), &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return ids, nil
}

func (g *GormBackend) Save(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	rec := CompletionRecord{StorageKey: key, SurveyIDs: string(raw), UpdatedAt: time.Now().UTC()}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"survey_ids", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (g *GormBackend) Delete(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Where("storage_key = ?", key).Delete(&CompletionRecord{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
