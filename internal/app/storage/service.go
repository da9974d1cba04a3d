package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the settings for the object storage backend.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService issues presigned URLs for attachment transfer. The server
// never proxies file bytes itself.
type StorageService interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error
}

// NewStorageService returns the S3-compatible implementation.
func NewStorageService(cfg ServiceConfig) (StorageService, error) {
	return newS3Client(cfg)
}
