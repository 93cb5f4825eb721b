package service

import "errors"

var (
	// ErrUnreadableMedia means ffprobe could not make sense of the source.
	ErrUnreadableMedia = errors.New("unreadable media")
	// ErrUnsupportedQuality means the rendition label is not in the fixed ladder.
	ErrUnsupportedQuality = errors.New("unsupported quality")
	// ErrUpscaleRejected means the target height exceeds the source height.
	ErrUpscaleRejected = errors.New("upscale rejected")
	// ErrSegmentationFailed wraps encoder/tooling errors during segmentation.
	ErrSegmentationFailed = errors.New("segmentation failed")
	// ErrJobExecutionFailed tags any pipeline-stage error recorded on a job.
	ErrJobExecutionFailed = errors.New("job execution failed")
)
