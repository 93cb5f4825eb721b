package dto

import (
	"github.com/google/uuid"

	"vodforge/constant"
)

type JobMessage struct {
	JobId   uuid.UUID        `json:"jobId"`
	AssetId uuid.UUID        `json:"assetId"`
	JobType constant.JobType `json:"jobType"`
}

// ProgressEvent is the payload fanned out to upload and asset channels.
// Human-readable fields (speed, durations, sizes) are preformatted so
// subscribers can render them directly.
type ProgressEvent struct {
	Progress          float64 `json:"progress"`
	Speed             string  `json:"speed"`
	TotalDuration     string  `json:"total_duration"`
	RemainingDuration string  `json:"remaining_duration"`
	RemainingSize     string  `json:"remaining_size"`
	UploadedBytes     int64   `json:"uploaded_bytes"`
	TotalBytes        int64   `json:"total_bytes"`
	Status            string  `json:"status"`
	AssetId           string  `json:"asset_id,omitempty"`
	Stage             string  `json:"stage,omitempty"`
	Rendition         string  `json:"rendition,omitempty"`
}

type QualityOption struct {
	Label    string  `json:"label"`
	URL      string  `json:"url"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
}
