package blob

import (
	"strings"
	"testing"
)

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"photo.png", "image/png", false},
		{"photo.JPG", "image/jpeg", false},
		{"logo.svg", "image/svg+xml", false},
		{"banner.webp", "image/webp", false},
		{"anim.gif", "image/gif", false},
		{"resume.pdf", "", true},
		{"script.sh", "", true},
		{"noextension", "", true},
	}

	for _, tt := range tests {
		got, err := ContentTypeFor(tt.filename)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ContentTypeFor(%q) expected error", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Errorf("ContentTypeFor(%q) error = %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("profile", "Photo.PNG")
	if !strings.HasPrefix(key, "profile/") {
		t.Errorf("ObjectKey() = %q, want profile/ prefix", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("ObjectKey() = %q, want lowercase .png suffix", key)
	}

	other := ObjectKey("profile", "Photo.PNG")
	if key == other {
		t.Error("ObjectKey() produced colliding keys for identical input")
	}
}

func TestURLUsesPublicBase(t *testing.T) {
	svc := &Service{config: Config{
		Endpoint:  "minio:9000",
		Bucket:    "portfolio",
		PublicURL: "https://cdn.example.com/",
	}}

	got := svc.URL("projects/img_abc.png")
	want := "https://cdn.example.com/projects/img_abc.png"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	if svc.URL("") != "" {
		t.Error("URL(\"\") should be empty")
	}
}

func TestURLFallsBackToEndpoint(t *testing.T) {
	svc := &Service{config: Config{
		Endpoint: "minio:9000",
		Bucket:   "portfolio",
	}}

	got := svc.URL("profile/img_abc.png")
	want := "http://minio:9000/portfolio/profile/img_abc.png"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
