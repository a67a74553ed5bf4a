// Package events carries video lifecycle notifications over SQS.
package events

import (
	"context"
	"time"
)

const (
	TypeVideoPublished = "video.published"
	TypeVideoDeleted   = "video.deleted"
)

type Event struct {
	Type                string    `json:"type"`
	VideoID             string    `json:"videoId"`
	OwnerID             string    `json:"ownerId"`
	UploadID            string    `json:"uploadId,omitempty"`
	VideoProviderID     string    `json:"videoProviderId,omitempty"`
	ThumbnailProviderID string    `json:"thumbnailProviderId,omitempty"`
	OccurredAt          time.Time `json:"occurredAt"`
}

// Publisher sends events. Callers log failures; a failed publish never
// fails the request that caused it.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Handler processes one received event. Returning an error leaves the
// message on the queue for redelivery.
type Handler func(ctx context.Context, e Event) error

// Nop discards events. Used when no queue is configured.
var Nop Publisher = nopPublisher{}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
