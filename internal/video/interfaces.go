package video

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("video not found")

// Owner is the minimal projection of the uploading user kept with a record.
type Owner struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// Record is a published video.
type Record struct {
	ID                  string
	VideoURL            string
	VideoProviderID     string
	ThumbnailURL        *string
	ThumbnailProviderID string
	Title               string
	Description         string
	Owner               Owner
	IsPublished         bool
	Views               int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ListFilter narrows List. Query is a case-insensitive substring matched
// against the title, and the description unless TitleOnly is set.
type ListFilter struct {
	Query         string
	OwnerID       string
	PublishedOnly bool
	TitleOnly     bool
}

// Matches applies the filter to a record in memory.
func (f ListFilter) Matches(r *Record) bool {
	if f.PublishedOnly && !r.IsPublished {
		return false
	}
	if f.OwnerID != "" && r.Owner.ID != f.OwnerID {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	if strings.Contains(strings.ToLower(r.Title), q) {
		return true
	}
	return !f.TitleOnly && strings.Contains(strings.ToLower(r.Description), q)
}

type Store interface {
	// Create inserts rec in a single write and returns its id. The id is
	// generated when rec.ID is empty.
	Create(ctx context.Context, rec *Record) (string, error)
	// Read returns nil, nil when id does not exist.
	Read(ctx context.Context, id string) (*Record, error)
	// List returns matching records, newest first.
	List(ctx context.Context, filter ListFilter) ([]Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) (int64, error)
	Close() error
}
