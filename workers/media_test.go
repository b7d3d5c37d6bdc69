package workers

import (
	"context"
	"strings"
	"testing"
)

func TestImageExtension(t *testing.T) {
	cases := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://cdn.example/a.jpg", "", ".jpg"},
		{"https://cdn.example/a.webp", "", ".webp"},
		{"https://cdn.example/a", "image/png", ".png"},
		{"https://cdn.example/a.php", "image/gif", ".gif"},
		{"https://cdn.example/a", "", ".jpg"},
	}

	for _, tc := range cases {
		if got := imageExtension(tc.url, tc.contentType); got != tc.want {
			t.Errorf("imageExtension(%q, %q) = %q, want %q", tc.url, tc.contentType, got, tc.want)
		}
	}
}

func TestNoOpUploaderDrains(t *testing.T) {
	u := &NoOpUploader{}
	r := strings.NewReader("image bytes")

	if err := u.Upload(context.Background(), "images/xx/key.jpg", r, "image/jpeg"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if r.Len() != 0 {
		t.Fatal("reader not drained")
	}
}
