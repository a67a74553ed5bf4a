package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIDTUBE_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("Port mismatch: got %d want %d", cfg.Server.Port, 9090)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("Store.Driver mismatch: got %q want %q", cfg.Store.Driver, "sqlite")
	}
	if cfg.CDN.Driver != "fs" {
		t.Fatalf("CDN.Driver mismatch: got %q want %q", cfg.CDN.Driver, "fs")
	}
	if cfg.Media.ThumbnailAt != 2*time.Second {
		t.Fatalf("ThumbnailAt mismatch: got %s want %s", cfg.Media.ThumbnailAt, 2*time.Second)
	}
	if cfg.Media.ThumbnailWidth != 640 || cfg.Media.ThumbnailHeight != 360 {
		t.Fatalf("thumbnail size mismatch: got %dx%d", cfg.Media.ThumbnailWidth, cfg.Media.ThumbnailHeight)
	}
	if cfg.Auth.CookieName != "accessToken" {
		t.Fatalf("CookieName mismatch: got %q", cfg.Auth.CookieName)
	}
	if got := cfg.MaxUploadBytes(); got != 100<<20 {
		t.Fatalf("MaxUploadBytes mismatch: got %d want %d", got, 100<<20)
	}
	if got := cfg.Addr(); got != "localhost:9090" {
		t.Fatalf("Addr mismatch: got %q want %q", got, "localhost:9090")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("VIDTUBE_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("VIDTUBE_CDN_DRIVER", "s3")
	t.Setenv("VIDTUBE_CDN_BUCKET", "vidtube-assets")

	cfg, err := Load(writeConfig(t, "cdn:\n  driver: fs\n  bucket: ignored\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CDN.Driver != "s3" {
		t.Fatalf("CDN.Driver mismatch: got %q want %q", cfg.CDN.Driver, "s3")
	}
	if cfg.CDN.Bucket != "vidtube-assets" {
		t.Fatalf("CDN.Bucket mismatch: got %q want %q", cfg.CDN.Bucket, "vidtube-assets")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		body string
	}{
		{"missing secret", nil, "server:\n  port: 8080\n"},
		{"bad store", map[string]string{"VIDTUBE_AUTH_JWT_SECRET": "s"}, "store:\n  driver: mongo\n"},
		{"s3 without bucket", map[string]string{"VIDTUBE_AUTH_JWT_SECRET": "s"}, "cdn:\n  driver: s3\n"},
		{"minio without endpoint", map[string]string{"VIDTUBE_AUTH_JWT_SECRET": "s"}, "cdn:\n  driver: minio\n  bucket: b\n"},
		{"zero thumbnail", map[string]string{"VIDTUBE_AUTH_JWT_SECRET": "s"}, "media:\n  thumbnail_width: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VIDTUBE_AUTH_JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
