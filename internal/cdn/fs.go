package cdn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FSUploader implements Uploader by copying into a local directory that the
// web server exposes under publicBaseURL. Meant for development.
type FSUploader struct {
	baseDir       string
	publicBaseURL string
}

var _ Uploader = (*FSUploader)(nil)

func NewFSUploader(baseDir, publicBaseURL string) (*FSUploader, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &FSUploader{baseDir: baseDir, publicBaseURL: publicBaseURL}, nil
}

func (u *FSUploader) BaseDir() string { return u.baseDir }

func (u *FSUploader) Upload(ctx context.Context, localPath, folder string, _ Kind) (*Asset, error) {
	src, _, err := openLocal(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	key := ObjectKey(folder, localPath)
	dstPath := filepath.Join(u.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset file: %w", err)
	}
	if _, err := io.Copy(dst, newCtxReader(ctx, src)); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return nil, fmt.Errorf("failed to write asset file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("failed to write asset file: %w", err)
	}

	url := JoinURL(u.publicBaseURL, key)
	return &Asset{URL: url, ProviderID: key}, nil
}

func (u *FSUploader) Delete(_ context.Context, providerID string, _ Kind) error {
	if providerID == "" {
		return nil
	}
	err := os.Remove(filepath.Join(u.baseDir, filepath.FromSlash(providerID)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete asset file: %w", err)
	}
	return nil
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func newCtxReader(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
