package cdn

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"vidtube/internal/config"
	"vidtube/internal/logging"
)

// GCSUploader implements Uploader using Google Cloud Storage.
type GCSUploader struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string

	newWriter func(ctx context.Context, key, contentType string) io.WriteCloser
}

var _ Uploader = (*GCSUploader)(nil)

// NewGCSUploader uses cfg.CredentialsFile when set and application default
// credentials otherwise.
func NewGCSUploader(ctx context.Context, cfg config.CDNConfig) (*GCSUploader, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	g := &GCSUploader{client: client, bucket: cfg.Bucket, publicBaseURL: cfg.PublicBaseURL}
	g.newWriter = g.objectWriter
	return g, nil
}

func (g *GCSUploader) objectWriter(ctx context.Context, key, contentType string) io.WriteCloser {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (g *GCSUploader) Upload(ctx context.Context, localPath, folder string, kind Kind) (*Asset, error) {
	f, size, err := openLocal(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key := ObjectKey(folder, localPath)
	// Closing a writer commits the object; cancelling its context abandons it.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := g.newWriter(wctx, key, ContentType(localPath, kind))

	if _, err := io.Copy(w, f); err != nil {
		cancel()
		w.Close()
		return nil, fmt.Errorf("failed to upload to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gcs upload: %w", err)
	}

	logging.C(ctx).Info("uploaded to gcs",
		zap.String("bucket", g.bucket),
		zap.String("key", key),
		zap.Int64("bytes", size),
	)

	url := g.objectURL(key)
	return &Asset{URL: url, SecureURL: url, ProviderID: key}, nil
}

func (g *GCSUploader) Delete(ctx context.Context, providerID string, _ Kind) error {
	if providerID == "" {
		return nil
	}
	err := g.client.Bucket(g.bucket).Object(providerID).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from gcs: %w", err)
	}
	return nil
}

func (g *GCSUploader) Close() error {
	return g.client.Close()
}

func (g *GCSUploader) objectURL(key string) string {
	if g.publicBaseURL != "" {
		return JoinURL(g.publicBaseURL, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key)
}
