// Package publish turns a staged video (and optional thumbnail) into a
// durable, published video record.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vidtube/internal/cdn"
	"vidtube/internal/logging"
	"vidtube/internal/media"
	"vidtube/internal/scratch"
	"vidtube/internal/video"
)

// FrameExtractor derives a still image from a video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, inputPath string, opts media.FrameOptions) (string, error)
}

// RecordStore is the part of video.Store the pipeline writes through.
type RecordStore interface {
	Create(ctx context.Context, rec *video.Record) (string, error)
	Read(ctx context.Context, id string) (*video.Record, error)
}

type Options struct {
	ThumbnailAt     time.Duration
	ThumbnailWidth  int
	ThumbnailHeight int
}

// DefaultOptions grabs a 640x360 frame two seconds in.
var DefaultOptions = Options{
	ThumbnailAt:     2 * time.Second,
	ThumbnailWidth:  640,
	ThumbnailHeight: 360,
}

// Request is one publish attempt. The pipeline owns Video and Thumbnail once
// Publish is called and releases them before returning.
type Request struct {
	Video       *scratch.File
	Thumbnail   *scratch.File
	Title       string
	Description string
	Owner       video.Owner
}

type Result struct {
	Record   *video.Record
	UploadID string
}

type Pipeline struct {
	frames   FrameExtractor
	uploader cdn.Uploader
	store    RecordStore
	dir      *scratch.Dir
	opts     Options

	newID func() (string, error)
}

func New(frames FrameExtractor, uploader cdn.Uploader, store RecordStore, dir *scratch.Dir, opts Options) *Pipeline {
	if opts.ThumbnailAt <= 0 {
		opts.ThumbnailAt = DefaultOptions.ThumbnailAt
	}
	if opts.ThumbnailWidth <= 0 || opts.ThumbnailHeight <= 0 {
		opts.ThumbnailWidth = DefaultOptions.ThumbnailWidth
		opts.ThumbnailHeight = DefaultOptions.ThumbnailHeight
	}
	return &Pipeline{
		frames:   frames,
		uploader: uploader,
		store:    store,
		dir:      dir,
		opts:     opts,
		newID:    NewUploadID,
	}
}

// Publish runs derivation, upload and persistence in order and returns the
// stored record. Every local file belonging to req is removed before it
// returns, whatever the outcome.
//
// A failed thumbnail upload leaves the already uploaded video in remote
// storage; it is not retracted.
func (p *Pipeline) Publish(ctx context.Context, req *Request) (*Result, error) {
	var handles []*scratch.File
	if req != nil {
		handles = append(handles, req.Video, req.Thumbnail)
	}
	defer func() { scratch.ReleaseAll(handles...) }()

	if req == nil || req.Video == nil {
		return nil, stageError(ErrMissingAsset, "", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uploadID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload id: %w", err)
	}
	log := logging.C(ctx).With(zap.String("upload_id", uploadID))
	start := time.Now()

	thumb := req.Thumbnail
	if thumb == nil {
		opts := media.FrameOptions{
			OutputDir: p.dir.ThumbnailsDir(),
			BaseName:  uploadID,
			At:        p.opts.ThumbnailAt,
			Width:     p.opts.ThumbnailWidth,
			Height:    p.opts.ThumbnailHeight,
		}
		// Registered before the tool runs so partial output is removed too.
		thumb = p.dir.Adopt(media.FramePath(opts))
		handles = append(handles, thumb)

		if _, err := p.frames.ExtractFrame(ctx, req.Video.Path, opts); err != nil {
			log.Error("thumbnail derivation failed", zap.Error(err))
			return nil, stageError(ErrThumbnailDerivation, uploadID, err)
		}
		log.Debug("thumbnail derived", zap.String("path", thumb.Path))
	}

	videoAsset, err := p.uploader.Upload(ctx, req.Video.Path, VideoFolder(uploadID), cdn.KindVideo)
	if err != nil {
		log.Error("video upload failed", zap.Error(err))
		return nil, stageError(ErrRemoteUpload, uploadID, err)
	}

	thumbAsset, err := p.uploader.Upload(ctx, thumb.Path, ThumbnailFolder(uploadID), cdn.KindImage)
	if err != nil {
		log.Error("thumbnail upload failed, video asset left in remote storage",
			zap.String("provider_id", videoAsset.ProviderID), zap.Error(err))
		return nil, stageError(ErrRemoteUpload, uploadID, err)
	}
	thumbURL := thumbAsset.Preferred()

	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = req.Video.OriginalName
	}

	rec := &video.Record{
		VideoURL:            videoAsset.Preferred(),
		VideoProviderID:     videoAsset.ProviderID,
		ThumbnailURL:        &thumbURL,
		ThumbnailProviderID: thumbAsset.ProviderID,
		Title:               title,
		Description:         req.Description,
		Owner:               req.Owner,
		IsPublished:         true,
	}
	id, err := p.store.Create(ctx, rec)
	if err != nil {
		log.Error("failed to persist video", zap.Error(err))
		return nil, stageError(ErrPersistence, uploadID, err)
	}

	scratch.ReleaseAll(handles...)

	stored, err := p.store.Read(ctx, id)
	if err == nil && stored == nil {
		err = video.ErrNotFound
	}
	if err != nil {
		log.Error("failed to read back video", zap.String("video_id", id), zap.Error(err))
		return nil, stageError(ErrPersistence, uploadID, err)
	}

	log.Info("video published",
		zap.String("video_id", id),
		zap.String("owner_id", req.Owner.ID),
		zap.Duration("took", time.Since(start)),
	)
	return &Result{Record: stored, UploadID: uploadID}, nil
}
