package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"vidtube/internal/cdn"
)

// AssetCleanup returns a Handler that removes the remote assets of deleted
// videos. The web server already tries this inline; running it from the
// queue retries whatever that attempt missed. Deletes are idempotent.
func AssetCleanup(uploader cdn.Uploader, log *zap.Logger) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, e Event) error {
		switch e.Type {
		case TypeVideoDeleted:
			var errs []error
			if e.VideoProviderID != "" {
				errs = append(errs, uploader.Delete(ctx, e.VideoProviderID, cdn.KindVideo))
			}
			if e.ThumbnailProviderID != "" {
				errs = append(errs, uploader.Delete(ctx, e.ThumbnailProviderID, cdn.KindImage))
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			log.Info("remote assets removed", zap.String("video_id", e.VideoID))
		case TypeVideoPublished:
			log.Info("video published",
				zap.String("video_id", e.VideoID),
				zap.String("owner_id", e.OwnerID),
				zap.String("upload_id", e.UploadID),
			)
		default:
			log.Warn("unknown event type", zap.String("event_type", e.Type))
		}
		return nil
	}
}
