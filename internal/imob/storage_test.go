package imob

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// allowedImageTypes
// ---------------------------------------------------------------------------

func TestAllowedImageTypes(t *testing.T) {
	tests := []struct {
		contentType string
		wantExt     string
		allowed     bool
	}{
		{"image/jpeg", ".jpg", true},
		{"image/png", ".png", true},
		{"image/webp", ".webp", true},
		{"image/gif", "", false},
		{"application/pdf", "", false},
		{"text/html", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		ext, ok := allowedImageTypes[tt.contentType]
		if ok != tt.allowed {
			t.Errorf("%q: allowed = %v, want %v", tt.contentType, ok, tt.allowed)
		}
		if ext != tt.wantExt {
			t.Errorf("%q: ext = %q, want %q", tt.contentType, ext, tt.wantExt)
		}
	}
}

// ---------------------------------------------------------------------------
// SaveSettings validation (no DB calls, just input validation)
// ---------------------------------------------------------------------------

func TestSaveSettings_ValidationErrors(t *testing.T) {
	svc := NewStorageService(nil, "test-secret")

	tests := []struct {
		name string
		req  SaveStorageSettingsRequest
	}{
		{"missing_endpoint", SaveStorageSettingsRequest{S3Bucket: "b", S3AccessKey: "a", S3SecretKey: "s"}},
		{"missing_bucket", SaveStorageSettingsRequest{S3Endpoint: "http://minio:9000", S3AccessKey: "a", S3SecretKey: "s"}},
		{"missing_access_key", SaveStorageSettingsRequest{S3Endpoint: "http://minio:9000", S3Bucket: "b", S3SecretKey: "s"}},
		{"missing_secret_key", SaveStorageSettingsRequest{S3Endpoint: "http://minio:9000", S3Bucket: "b", S3AccessKey: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := svc.SaveSettings(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if status != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", status)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// UploadImage content-type check (fails before touching settings)
// ---------------------------------------------------------------------------

func TestUploadImage_RejectsUnsupportedType(t *testing.T) {
	svc := NewStorageService(nil, "test-secret")

	_, _, status, err := svc.UploadImage(context.Background(), "imovel-1", "application/zip", strings.NewReader("data"))
	if err == nil {
		t.Fatal("expected error for unsupported content type")
	}
	if status != http.StatusUnsupportedMediaType {
		t.Errorf("expected status 415, got %d", status)
	}
}

// ---------------------------------------------------------------------------
// publicURL
// ---------------------------------------------------------------------------

func TestPublicURL(t *testing.T) {
	svc := NewStorageService(nil, "test-secret")

	tests := []struct {
		name     string
		settings storageSettingsInternal
		key      string
		want     string
	}{
		{
			"custom_base_url",
			storageSettingsInternal{PublicBaseURL: "https://cdn.example.com"},
			"imoveis/abc/1.jpg",
			"https://cdn.example.com/imoveis/abc/1.jpg",
		},
		{
			"base_url_trailing_slash",
			storageSettingsInternal{PublicBaseURL: "https://cdn.example.com/"},
			"imoveis/abc/1.jpg",
			"https://cdn.example.com/imoveis/abc/1.jpg",
		},
		{
			"endpoint_fallback",
			storageSettingsInternal{S3Endpoint: "http://minio:9000", S3Bucket: "fotos"},
			"imoveis/abc/1.jpg",
			"http://minio:9000/fotos/imoveis/abc/1.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.publicURL(&tt.settings, tt.key); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
