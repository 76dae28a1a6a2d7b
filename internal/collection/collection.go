// Package collection persists event collections on disk. A collection
// is one folder holding an ordered events.json for publication-facing
// consumers, a non_relevant.json record set, and downloaded images.
package collection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/janlim/eventscout/internal/event"
)

const (
	eventsFile      = "events.json"
	nonRelevantFile = "non_relevant.json"
)

// Collection is the in-memory form of one collection folder.
type Collection struct {
	Dir         string
	Name        string
	Events      []event.Event
	NonRelevant []event.Event
}

// Load reads a collection folder. A missing folder or missing files
// yield an empty collection so first runs need no special casing.
func Load(dir string) (*Collection, error) {
	c := &Collection{Dir: dir, Name: filepath.Base(dir)}

	events, err := readEvents(filepath.Join(dir, eventsFile))
	if err != nil {
		return nil, fmt.Errorf("loading collection %s: %w", c.Name, err)
	}
	c.Events = events

	nonRelevant, err := readEvents(filepath.Join(dir, nonRelevantFile))
	if err != nil {
		return nil, fmt.Errorf("loading collection %s: %w", c.Name, err)
	}
	c.NonRelevant = nonRelevant

	return c, nil
}

func readEvents(path string) ([]event.Event, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return events, nil
}

// Save writes both event files. Each file is written to a temp file in
// the same directory and renamed into place, so readers see either the
// old document or the new one, never a partial write.
func (c *Collection) Save() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("creating collection dir: %w", err)
	}

	sortEvents(c.Events)
	sortEvents(c.NonRelevant)

	if err := writeAtomic(filepath.Join(c.Dir, eventsFile), c.Events); err != nil {
		return fmt.Errorf("saving collection %s: %w", c.Name, err)
	}
	if err := writeAtomic(filepath.Join(c.Dir, nonRelevantFile), c.NonRelevant); err != nil {
		return fmt.Errorf("saving collection %s: %w", c.Name, err)
	}
	return nil
}

// ImagesDir is where this collection's downloaded images live.
func (c *Collection) ImagesDir() string {
	return filepath.Join(c.Dir, "images")
}

func writeAtomic(path string, events []event.Event) error {
	if events == nil {
		events = []event.Event{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sortEvents orders a collection document by start date, then title,
// then ID, so diffs between runs stay readable.
func sortEvents(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartDate != events[j].StartDate {
			return events[i].StartDate < events[j].StartDate
		}
		if events[i].Title != events[j].Title {
			return events[i].Title < events[j].Title
		}
		return events[i].ID < events[j].ID
	})
}
