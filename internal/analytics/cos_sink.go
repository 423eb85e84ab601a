package analytics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/policyqa/core/internal/config"
)

// cosWriter uploads analytics batches to Tencent Cloud COS.
type cosWriter struct {
	client    *cos.Client
	keyPrefix string
}

func newCosWriter(cfg *config.ObjectStoreConfig) (*cosWriter, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com/", cfg.Bucket, cfg.Region)
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analytics bucket URL: %w", err)
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})
	return &cosWriter{client: client, keyPrefix: "policyqa"}, nil
}

func (w *cosWriter) PutObject(ctx context.Context, key string, data []byte) error {
	objectName := fmt.Sprintf("%s/%s", w.keyPrefix, key)
	if _, err := w.client.Object.Put(ctx, objectName, bytes.NewReader(data), nil); err != nil {
		return fmt.Errorf("failed to upload analytics batch to COS: %w", err)
	}
	return nil
}
