package cdn

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Kind is the resource type of an uploaded asset.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// Asset is the durable result of an upload.
type Asset struct {
	URL        string
	SecureURL  string
	ProviderID string
}

// Preferred returns the secure URL when the provider issued one.
func (a *Asset) Preferred() string {
	if a.SecureURL != "" {
		return a.SecureURL
	}
	return a.URL
}

// Uploader moves local files to remote content delivery.
type Uploader interface {
	// Upload stores localPath under folder. It fails if the file is missing.
	Upload(ctx context.Context, localPath, folder string, kind Kind) (*Asset, error)
	// Delete removes an asset previously returned by Upload.
	Delete(ctx context.Context, providerID string, kind Kind) error
}

// ObjectKey is the remote key of localPath under folder.
func ObjectKey(folder, localPath string) string {
	return path.Join(strings.Trim(folder, "/"), filepath.Base(localPath))
}

// ContentType guesses the MIME type from the extension, falling back to a
// default per kind.
func ContentType(localPath string, kind Kind) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	if kind == KindImage {
		return "image/jpeg"
	}
	return "video/mp4"
}

// JoinURL appends an object key to a base URL.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func openLocal(localPath string) (*os.File, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, 0, fmt.Errorf("file not found: %s: %w", localPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	return f, info.Size(), nil
}
