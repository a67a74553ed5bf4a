package cdn

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		folder, path, want string
	}{
		{"videos/1_abc", "/tmp/uploads/1-x.mp4", "videos/1_abc/1-x.mp4"},
		{"/thumbnails/1_abc/", "tmp/thumbnails/1_abc.jpg", "thumbnails/1_abc/1_abc.jpg"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.folder, tt.path); got != tt.want {
			t.Fatalf("ObjectKey(%q, %q) = %q, want %q", tt.folder, tt.path, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("a.jpg", KindImage); got != "image/jpeg" {
		t.Fatalf("got %q want %q", got, "image/jpeg")
	}
	if got := ContentType("a.unknownext", KindVideo); got != "video/mp4" {
		t.Fatalf("got %q want %q", got, "video/mp4")
	}
	if got := ContentType("a", KindImage); got != "image/jpeg" {
		t.Fatalf("got %q want %q", got, "image/jpeg")
	}
}

func TestAssetPreferred(t *testing.T) {
	a := &Asset{URL: "http://x/a", SecureURL: "https://x/a"}
	if a.Preferred() != "https://x/a" {
		t.Fatalf("expected secure url")
	}
	a.SecureURL = ""
	if a.Preferred() != "http://x/a" {
		t.Fatalf("expected plain url")
	}
}

func TestFSUploader(t *testing.T) {
	base := t.TempDir()
	u, err := NewFSUploader(base, "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("NewFSUploader returned error: %v", err)
	}

	src := writeFile(t, "1-abc.mp4", "video-bytes")
	asset, err := u.Upload(context.Background(), src, "videos/1_xyz", KindVideo)
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	if asset.ProviderID != "videos/1_xyz/1-abc.mp4" {
		t.Fatalf("ProviderID mismatch: got %q", asset.ProviderID)
	}
	if asset.URL != "http://localhost:8080/media/videos/1_xyz/1-abc.mp4" {
		t.Fatalf("URL mismatch: got %q", asset.URL)
	}

	data, err := os.ReadFile(filepath.Join(base, "videos", "1_xyz", "1-abc.mp4"))
	if err != nil {
		t.Fatalf("asset not copied: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("content mismatch: got %q", data)
	}

	if err := u.Delete(context.Background(), asset.ProviderID, KindVideo); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := u.Delete(context.Background(), asset.ProviderID, KindVideo); err != nil {
		t.Fatalf("second Delete returned error: %v", err)
	}
}

func TestFSUploaderMissingFile(t *testing.T) {
	u, err := NewFSUploader(t.TempDir(), "http://localhost/media")
	if err != nil {
		t.Fatalf("NewFSUploader returned error: %v", err)
	}
	if _, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"), "videos/x", KindVideo); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []string
	body    string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3UploaderUpload(t *testing.T) {
	client := &fakeS3{}
	u := newS3Uploader(client, "vidtube-assets", "us-west-1", "")

	src := writeFile(t, "1_abc.jpg", "jpeg")
	asset, err := u.Upload(context.Background(), src, "thumbnails/1_abc", KindImage)
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	if len(client.puts) != 1 {
		t.Fatalf("expected one PutObject, got %d", len(client.puts))
	}
	in := client.puts[0]
	if got := aws.ToString(in.Key); got != "thumbnails/1_abc/1_abc.jpg" {
		t.Fatalf("key mismatch: got %q", got)
	}
	if got := aws.ToString(in.ContentType); got != "image/jpeg" {
		t.Fatalf("content type mismatch: got %q", got)
	}
	if client.body != "jpeg" {
		t.Fatalf("body mismatch: got %q", client.body)
	}

	want := "https://vidtube-assets.s3.us-west-1.amazonaws.com/thumbnails/1_abc/1_abc.jpg"
	if asset.Preferred() != want {
		t.Fatalf("URL mismatch: got %q want %q", asset.Preferred(), want)
	}

	if err := u.Delete(context.Background(), asset.ProviderID, KindImage); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(client.deletes) != 1 || client.deletes[0] != asset.ProviderID {
		t.Fatalf("unexpected deletes: %v", client.deletes)
	}
}

func TestS3UploaderPublicBaseURL(t *testing.T) {
	u := newS3Uploader(&fakeS3{}, "b", "r", "https://cdn.example.com")
	asset, err := u.Upload(context.Background(), writeFile(t, "v.mp4", "x"), "videos/1_a", KindVideo)
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if asset.URL != "https://cdn.example.com/videos/1_a/v.mp4" {
		t.Fatalf("URL mismatch: got %q", asset.URL)
	}
}

func TestS3UploaderErrors(t *testing.T) {
	sentinel := errors.New("connection reset")
	u := newS3Uploader(&fakeS3{err: sentinel}, "b", "r", "")

	_, err := u.Upload(context.Background(), writeFile(t, "v.mp4", "x"), "videos/1_a", KindVideo)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}

	if _, err := u.Upload(context.Background(), "/does/not/exist.mp4", "videos/1_a", KindVideo); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

type fakeGCSWriter struct {
	ctx         context.Context
	key         string
	contentType string
	writeErr    error
	written     int
	closed      bool
	cancelled   bool
}

func (w *fakeGCSWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	w.written += len(p)
	return len(p), nil
}

func (w *fakeGCSWriter) Close() error {
	w.closed = true
	w.cancelled = w.ctx.Err() != nil
	if w.cancelled {
		return w.ctx.Err()
	}
	return nil
}

func newFakeGCS(w *fakeGCSWriter) *GCSUploader {
	return &GCSUploader{
		bucket: "media",
		newWriter: func(ctx context.Context, key, contentType string) io.WriteCloser {
			w.ctx, w.key, w.contentType = ctx, key, contentType
			return w
		},
	}
}

func TestGCSUploaderUpload(t *testing.T) {
	w := &fakeGCSWriter{}
	asset, err := newFakeGCS(w).Upload(context.Background(), writeFile(t, "clip.mp4", "video"), "videos/1_a", KindVideo)
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if w.key != "videos/1_a/clip.mp4" || w.contentType != "video/mp4" || w.written != 5 {
		t.Fatalf("writer got key=%q type=%q bytes=%d", w.key, w.contentType, w.written)
	}
	if !w.closed || w.cancelled {
		t.Fatalf("object should be committed: closed=%v cancelled=%v", w.closed, w.cancelled)
	}
	if asset.ProviderID != "videos/1_a/clip.mp4" || asset.URL != "https://storage.googleapis.com/media/videos/1_a/clip.mp4" {
		t.Fatalf("asset mismatch: %+v", asset)
	}
}

func TestGCSUploaderAbandonsFailedCopy(t *testing.T) {
	sentinel := errors.New("broken pipe")
	w := &fakeGCSWriter{writeErr: sentinel}

	_, err := newFakeGCS(w).Upload(context.Background(), writeFile(t, "clip.mp4", "video"), "videos/1_a", KindVideo)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped copy error, got %v", err)
	}
	if !w.cancelled {
		t.Fatalf("writer context must be cancelled before close so the partial object is dropped")
	}
}
