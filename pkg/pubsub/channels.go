package pubsub

import "fmt"

// UploadChannel is the per-session progress channel for a chunked upload.
func UploadChannel(ownerId, sessionId string) string {
	return fmt.Sprintf("upload.%s.%s", ownerId, sessionId)
}

// AssetChannel carries transcode and segmentation progress for an asset.
func AssetChannel(assetId string) string {
	return fmt.Sprintf("asset.%s", assetId)
}
