package cdn

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vidtube/internal/config"
	"vidtube/internal/logging"
)

// New builds the uploader selected by cfg.Driver.
func New(ctx context.Context, cfg config.CDNConfig) (Uploader, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Uploader(ctx, cfg)
	case "minio":
		u, err := NewMinIOUploader(cfg)
		if err != nil {
			return nil, err
		}
		if err := u.EnsureBucket(ctx, cfg.Region); err != nil {
			logging.C(ctx).Warn("failed to ensure bucket", zap.Error(err))
		}
		return u, nil
	case "gcs":
		return NewGCSUploader(ctx, cfg)
	case "fs":
		return NewFSUploader(cfg.BaseDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported cdn driver: %s", cfg.Driver)
	}
}
