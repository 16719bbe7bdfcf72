package models

import "time"

// StateDocument is one named engine document (mirror, baselines, pins, ...) stored as JSONB.
type StateDocument struct {
	Name      string    `gorm:"primaryKey;type:text"`
	Body      string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (StateDocument) TableName() string {
	return "state_documents"
}
