package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Long-lived named buckets, selectable by name instead of timestamp.
const (
	EvergreenBucket    = "evergreen"
	NonEvergreenBucket = "non-evergreen"
)

// runFolderLayout names per-run collection folders.
const runFolderLayout = "2006-01-02_150405"

// Store manages the collection folders under one output root.
type Store struct {
	Root string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Root: dir}
}

// Open loads the named collection, which may be a run timestamp folder
// or one of the long-lived buckets. A nonexistent name opens empty.
func (s *Store) Open(name string) (*Collection, error) {
	return Load(filepath.Join(s.Root, name))
}

// NewRunCollection creates the collection folder for a run starting at
// the given time.
func (s *Store) NewRunCollection(start time.Time) (*Collection, error) {
	name := start.UTC().Format(runFolderLayout)
	dir := filepath.Join(s.Root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run folder %s: %w", name, err)
	}
	return &Collection{Dir: dir, Name: name}, nil
}

// List returns the names of all collection folders under the root,
// sorted. The named buckets sort alphabetically among the timestamps.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.Root, entry.Name(), eventsFile)); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// OpenAll loads every collection folder under the root.
func (s *Store) OpenAll() ([]*Collection, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}

	collections := make([]*Collection, 0, len(names))
	for _, name := range names {
		c, err := s.Open(name)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, nil
}
