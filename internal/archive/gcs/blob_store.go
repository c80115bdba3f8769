// Package gcs archives raw page markup to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// BlobStore implements lead.BlobStore on a GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewBlobStore initializes a GCS client and verifies bucket access.
// Authentication uses Application Default Credentials.
func NewBlobStore(ctx context.Context, bucket string, logger *zap.Logger) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	// Fail fast on startup if the bucket is missing or inaccessible.
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing gcs client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", bucket, err)
	}

	return &BlobStore{client: client, bucket: bucket, logger: logger}, nil
}

// PutObject uploads data to the bucket and returns the gs:// URI.
func (b *BlobStore) PutObject(ctx context.Context, path, contentType string, data []byte) (string, error) {
	wc := b.client.Bucket(b.bucket).Object(path).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			b.logger.Warn("closing gcs writer after write failure", zap.Error(closeErr))
		}
		return "", fmt.Errorf("write gcs object %s: %w", path, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer for %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", b.bucket, path), nil
}

// Close releases the underlying client.
func (b *BlobStore) Close() error {
	return b.client.Close()
}
