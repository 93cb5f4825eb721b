package entities

import (
	"time"

	"github.com/google/uuid"
)

// Rendition is one quality variant of an asset. Rows are written once by the
// conversion pipeline, in completion order, and are immutable afterwards.
type Rendition struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	AssetId        uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;index:idx_renditions_asset"`
	Label          string    `json:"label" gorm:"type:varchar(16);not null"`
	SourceObject   string    `json:"source_object" gorm:"type:varchar(500);not null"`
	SegmentPrefix  string    `json:"segment_prefix" gorm:"type:varchar(500);not null"`
	PlaylistObject string    `json:"playlist_object" gorm:"type:varchar(500);not null"`
	Bandwidth      int       `json:"bandwidth" gorm:"not null"`
	Resolution     string    `json:"resolution" gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Rendition) TableName() string {
	return "renditions"
}
