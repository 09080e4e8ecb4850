package domain

import "time"

// Artifact records the last successfully produced report under a stable
// name. The record, not the file's modification time, is the freshness signal
// used to decide whether a regeneration can be skipped.
type Artifact struct {
	ID         string    `json:"id"          gorm:"type:TEXT NOT NULL;primaryKey"`
	Name       string    `json:"name"        gorm:"type:varchar(64) NOT NULL;uniqueIndex:ux_artifact_name"`
	Path       string    `json:"path"        gorm:"type:TEXT NOT NULL"`
	ProducedAt time.Time `json:"produced_at" gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (Artifact) TableName() string { return "artifacts" }
