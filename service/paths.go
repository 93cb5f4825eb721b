package service

import (
	"fmt"

	"vodforge/constant"
)

// Object-key layout under the content root. The master manifest's relative
// URIs depend on this shape, so it must not change.

func SourceObject(assetId, ext string) string {
	return fmt.Sprintf("videos/%s/source%s", assetId, ext)
}

func QualityObject(assetId, label, ext string) string {
	return fmt.Sprintf("videos/%s/qualities/%s/source%s", assetId, label, ext)
}

func SegmentPrefix(assetId, label string) string {
	return fmt.Sprintf("videos/%s/segments/%s", assetId, label)
}

func SegmentObject(assetId, label, name string) string {
	return fmt.Sprintf("videos/%s/segments/%s/%s", assetId, label, name)
}

func ManifestObject(assetId string) string {
	return fmt.Sprintf("videos/%s/master.m3u8", assetId)
}

func ThumbnailObject(assetId string) string {
	return fmt.Sprintf("videos/%s/thumbnail.jpg", assetId)
}

// segmentURI is the playlist path relative to the master manifest.
func segmentURI(label, name string) string {
	return fmt.Sprintf("segments/%s/%s", label, name)
}

// renditionSourceObject is where a rendition's resolved file lives; the
// original rendition points straight at the uploaded source.
func renditionSourceObject(assetId, label, ext string) string {
	if label == constant.QualityOriginal {
		return SourceObject(assetId, ext)
	}
	return QualityObject(assetId, label, ext)
}
