package images

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/janlim/eventscout/internal/event"
)

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/a.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpegbytes")
	})
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDownloadFillsLocalPath(t *testing.T) {
	server := newImageServer(t)
	store := NewStore(t.TempDir(), 3)

	events := []event.Event{{
		ID: "a", Title: "Show",
		Images: []event.Image{
			{OriginalURL: server.URL + "/a.jpg"},
			{OriginalURL: server.URL + "/missing.jpg"},
		},
	}}
	store.Download(context.Background(), events)

	first := events[0].Images[0]
	if first.LocalPath == "" || first.Filename == "" {
		t.Fatalf("expected local path filled, got %+v", first)
	}
	data, err := os.ReadFile(first.LocalPath)
	if err != nil {
		t.Fatalf("reading downloaded image: %v", err)
	}
	if string(data) != "jpegbytes" {
		t.Errorf("unexpected image content %q", data)
	}

	second := events[0].Images[1]
	if second.LocalPath != "" {
		t.Error("expected failed download to keep only the original URL")
	}
	if second.OriginalURL == "" {
		t.Error("expected original URL preserved for failed download")
	}
}

func TestDownloadHonorsMaxPerEvent(t *testing.T) {
	server := newImageServer(t)
	store := NewStore(t.TempDir(), 1)

	events := []event.Event{{
		ID: "a", Title: "Show",
		Images: []event.Image{
			{OriginalURL: server.URL + "/a.jpg"},
			{OriginalURL: server.URL + "/a.jpg"},
		},
	}}
	store.Download(context.Background(), events)

	if events[0].Images[0].LocalPath == "" {
		t.Error("expected first image downloaded")
	}
	if events[0].Images[1].LocalPath != "" {
		t.Error("expected second image skipped by per-event cap")
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 3)

	path := dir + "/img.jpg"
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected image removed")
	}

	// Deleting an already-missing file is fine.
	if err := store.Delete(path); err != nil {
		t.Errorf("expected missing file tolerated, got %v", err)
	}
}

func TestExtension(t *testing.T) {
	cases := []struct {
		url, contentType, want string
	}{
		{"https://img.example/a.PNG", "", ".png"},
		{"https://img.example/a", "image/webp", ".webp"},
		{"https://img.example/a", "", ".jpg"},
	}
	for _, tc := range cases {
		if got := extension(tc.url, tc.contentType); got != tc.want {
			t.Errorf("extension(%q, %q) = %q, want %q", tc.url, tc.contentType, got, tc.want)
		}
	}
}
