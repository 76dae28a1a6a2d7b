// Package images downloads event images into a collection folder and
// deletes them when their event is dropped as a duplicate.
package images

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/janlim/eventscout/internal/event"
)

// maxImageBytes caps a single download.
const maxImageBytes = 10 << 20

// Store downloads and removes locally stored event images.
type Store struct {
	dir         string
	maxPerEvent int
	client      *http.Client
}

// NewStore creates a Store writing into dir.
func NewStore(dir string, maxPerEvent int) *Store {
	if maxPerEvent <= 0 {
		maxPerEvent = 3
	}
	return &Store{
		dir:         dir,
		maxPerEvent: maxPerEvent,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Download fetches the images of every event in place, filling
// LocalPath and Filename on success. Failed downloads keep their
// original URL so the review stage can still see them.
func (s *Store) Download(ctx context.Context, events []event.Event) {
	for i := range events {
		ev := &events[i]
		downloaded := 0
		for j := range ev.Images {
			if downloaded >= s.maxPerEvent {
				break
			}
			img := &ev.Images[j]
			if img.OriginalURL == "" || img.LocalPath != "" {
				continue
			}

			local, err := s.fetch(ctx, img.OriginalURL)
			if err != nil {
				log.Printf("Downloading image %s: %v", img.OriginalURL, err)
				continue
			}
			img.LocalPath = local
			img.Filename = filepath.Base(local)
			downloaded++
		}
	}
}

// Delete removes one stored image file. Missing files are not an
// error: a previous dedup pass may have removed them already.
func (s *Store) Delete(localPath string) error {
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting image %s: %w", localPath, err)
	}
	return nil
}

func (s *Store) fetch(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + extension(imageURL, resp.Header.Get("Content-Type"))
	local := filepath.Join(s.dir, name)

	out, err := os.Create(local)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		out.Close()
		os.Remove(local)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(local)
		return "", err
	}
	return local, nil
}

// extension picks a file extension from the URL path, falling back to
// the content type.
func extension(imageURL, contentType string) string {
	if u, err := url.Parse(imageURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
