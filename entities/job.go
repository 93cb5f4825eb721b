package entities

import (
	"time"

	"github.com/google/uuid"

	"vodforge/constant"
)

type ProcessingJob struct {
	ID           uuid.UUID          `json:"id" gorm:"type:uuid;primary_key"`
	AssetId      uuid.UUID          `json:"asset_id" gorm:"type:uuid;not null;index:idx_processing_jobs_asset"`
	Status       constant.JobStatus `json:"status" gorm:"type:varchar(16);not null"`
	JobType      constant.JobType   `json:"job_type" gorm:"type:varchar(16);not null"`
	ErrorMessage string             `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func (ProcessingJob) TableName() string {
	return "processing_jobs"
}
