package analytics

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/policyqa/core/internal/config"
)

// minioWriter uploads analytics batches to a self-hosted or S3-compatible
// MinIO bucket.
type minioWriter struct {
	client     *minio.Client
	bucketName string
}

func newMinioWriter(cfg *config.ObjectStoreConfig) (*minioWriter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check analytics bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create analytics bucket: %w", err)
		}
	}

	return &minioWriter{client: client, bucketName: cfg.Bucket}, nil
}

func (w *minioWriter) PutObject(ctx context.Context, key string, data []byte) error {
	_, err := w.client.PutObject(ctx, w.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/vnd.apache.parquet"})
	if err != nil {
		return fmt.Errorf("failed to upload analytics batch to MinIO: %w", err)
	}
	return nil
}
