package storage

import (
	"context"
	"io"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore is the content root the pipeline reads and writes. Keys follow
// the videos/{asset_id}/... layout; the master manifest's relative URIs
// depend on it.
type ObjectStore interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) error
	// UploadDir walks localDir and uploads every file under keyPrefix,
	// preserving relative paths.
	UploadDir(ctx context.Context, keyPrefix, localDir string) error
	DownloadFile(ctx context.Context, key, localPath string) error
	// Reader streams an object; the caller closes it.
	Reader(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}
