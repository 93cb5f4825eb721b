package entities

import (
	"time"

	"github.com/google/uuid"

	"vodforge/constant"
)

type AudioTrack struct {
	Language string `json:"language"`
	Title    string `json:"title,omitempty"`
}

type SubtitleTrack struct {
	Language string `json:"language"`
}

// MediaAsset is created once upload reassembly succeeds. Probed fields are
// written exactly once by the conversion job and never mutated afterwards;
// only the manifest and thumbnail object keys are attached later.
type MediaAsset struct {
	ID             uuid.UUID           `json:"id" gorm:"type:uuid;primary_key"`
	OwnerId        string              `json:"owner_id" gorm:"type:varchar(64);not null;index:idx_media_assets_owner"`
	Title          string              `json:"title" gorm:"type:varchar(255)"`
	Description    string              `json:"description" gorm:"type:text"`
	Category       string              `json:"category" gorm:"type:varchar(64)"`
	Visibility     constant.Visibility `json:"visibility" gorm:"type:varchar(16);not null;default:'PUBLIC'"`
	Tags           string              `json:"tags" gorm:"type:text"`
	SourceObject   string              `json:"source_object" gorm:"type:varchar(500);not null"`
	SizeBytes      int64               `json:"size_bytes" gorm:"type:bigint"`
	Duration       float64             `json:"duration"`
	Width          int                 `json:"width"`
	Height         int                 `json:"height"`
	FPS            float64             `json:"fps"`
	AudioTracks    []AudioTrack        `json:"audio_tracks" gorm:"serializer:json"`
	SubtitleTracks []SubtitleTrack     `json:"subtitle_tracks" gorm:"serializer:json"`
	QualityLadder  []string            `json:"quality_ladder" gorm:"serializer:json"`
	ManifestObject string              `json:"manifest_object" gorm:"type:varchar(500)"`
	ThumbnailObject string             `json:"thumbnail_object" gorm:"type:varchar(500)"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (MediaAsset) TableName() string {
	return "media_assets"
}
