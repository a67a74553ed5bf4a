// Package scratch manages the short-lived local files a request creates.
// Every file is handed out as a *File whose Release removes it; releases are
// idempotent and never fail the caller.
package scratch

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	uploadsDir    = "uploads"
	thumbnailsDir = "thumbnails"
)

// Dir is the root of the ephemeral store.
type Dir struct {
	root string
	log  *zap.Logger
}

// New creates root and its subfolders. Root is made absolute so handles stay
// valid for child processes with a different working directory.
func New(root string, log *zap.Logger) (*Dir, error) {
	if log == nil {
		log = zap.NewNop()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory: %w", err)
	}
	for _, sub := range []string{uploadsDir, thumbnailsDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}
	return &Dir{root: root, log: log}, nil
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) UploadsDir() string { return filepath.Join(d.root, uploadsDir) }

func (d *Dir) ThumbnailsDir() string { return filepath.Join(d.root, thumbnailsDir) }

// Stage copies r into a uniquely named file under uploads/. The original
// extension is kept; the name itself is never trusted.
func (d *Dir) Stage(originalName, mimeType string, r io.Reader) (*File, error) {
	name, err := stagedName(originalName)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(d.UploadsDir(), name)
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	f := d.Adopt(path)
	f.OriginalName = originalName
	f.MimeType = mimeType

	n, err := io.Copy(out, r)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		f.Release()
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	f.Size = n
	return f, nil
}

// Adopt returns a handle for a path the caller expects to exist (now or
// later). The file does not have to exist yet.
func (d *Dir) Adopt(path string) *File {
	return &File{Path: path, OriginalName: filepath.Base(path), log: d.log}
}

func stagedName(originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 10 {
		ext = ""
	}
	suffix, err := RandomBase36(6)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + suffix + ext, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomBase36 returns n random characters from [0-9a-z].
func RandomBase36(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	limit := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random name: %w", err)
		}
		sb.WriteByte(base36[v.Int64()])
	}
	return sb.String(), nil
}

// File is a local ephemeral file owned by one request.
type File struct {
	Path         string
	OriginalName string
	MimeType     string
	Size         int64

	log  *zap.Logger
	once sync.Once
}

// Release removes the file. A file that is already gone is not an error;
// anything else is logged.
func (f *File) Release() {
	if f == nil || f.Path == "" {
		return
	}
	f.once.Do(func() {
		err := os.Remove(f.Path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return
		}
		log := f.log
		if log == nil {
			log = zap.L()
		}
		log.Warn("file cleanup failed", zap.String("path", f.Path), zap.Error(err))
	})
}

// ReleaseAll releases every non-nil handle.
func ReleaseAll(files ...*File) {
	for _, f := range files {
		f.Release()
	}
}
