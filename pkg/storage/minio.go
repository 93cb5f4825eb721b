package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

type minioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) ObjectStore {
	return &minioStore{
		client: client,
		bucket: bucket,
	}
}

func (s *minioStore) UploadFile(ctx context.Context, key, localPath, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *minioStore) UploadDir(ctx context.Context, keyPrefix, localDir string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		relativePath, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}

		objectName := filepath.Join(keyPrefix, relativePath)
		objectName = strings.ReplaceAll(objectName, "\\", "/")

		_, uploadErr := s.client.FPutObject(ctx, s.bucket, objectName, path, minio.PutObjectOptions{})
		return uploadErr
	})
}

func (s *minioStore) DownloadFile(ctx context.Context, key, localPath string) error {
	return s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{})
}

func (s *minioStore) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *minioStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: stat.Size}, nil
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
