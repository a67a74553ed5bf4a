package cdn

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"vidtube/internal/config"
	"vidtube/internal/logging"
)

// MinIOUploader implements Uploader against a MinIO (or other S3 compatible)
// endpoint.
type MinIOUploader struct {
	client        *minio.Client
	bucket        string
	endpoint      string
	useSSL        bool
	publicBaseURL string
}

var _ Uploader = (*MinIOUploader)(nil)

func NewMinIOUploader(cfg config.CDNConfig) (*MinIOUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOUploader{
		client:        client,
		bucket:        cfg.Bucket,
		endpoint:      cfg.Endpoint,
		useSSL:        cfg.UseSSL,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (m *MinIOUploader) EnsureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIOUploader) Upload(ctx context.Context, localPath, folder string, kind Kind) (*Asset, error) {
	f, size, err := openLocal(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key := ObjectKey(folder, localPath)
	info, err := m.client.PutObject(ctx, m.bucket, key, f, size, minio.PutObjectOptions{
		ContentType: ContentType(localPath, kind),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to minio: %w", err)
	}

	logging.C(ctx).Info("uploaded to minio",
		zap.String("bucket", m.bucket),
		zap.String("key", key),
		zap.String("etag", info.ETag),
	)

	url := m.objectURL(key)
	asset := &Asset{URL: url, ProviderID: key}
	if m.useSSL || m.publicBaseURL != "" {
		asset.SecureURL = url
	}
	return asset, nil
}

func (m *MinIOUploader) Delete(ctx context.Context, providerID string, _ Kind) error {
	if providerID == "" {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, providerID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

func (m *MinIOUploader) objectURL(key string) string {
	if m.publicBaseURL != "" {
		return JoinURL(m.publicBaseURL, key)
	}
	scheme := "http"
	if m.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.endpoint, m.bucket, key)
}
