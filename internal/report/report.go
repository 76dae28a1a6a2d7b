// Package report renders a markdown digest of a run's collection so a
// run can be audited without opening every JSON document.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/janlim/eventscout/internal/collection"
	"github.com/janlim/eventscout/internal/event"
)

// DigestFile is the digest's file name inside a collection folder.
const DigestFile = "digest.md"

// Summary holds the audit counts of one run.
type Summary struct {
	RunID       string
	Processed   int
	Kept        int
	Duplicates  int
	NonRelevant int
	Errored     int
}

// Compose renders the digest markdown for a collection and its run
// summary.
func Compose(c *collection.Collection, s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Event Digest — %s\n\n", c.Name)
	fmt.Fprintf(&b, "Run `%s`: %d articles processed, %d events kept, %d duplicates dropped, %d non-relevant, %d errored.\n\n",
		s.RunID, s.Processed, s.Kept, s.Duplicates, s.NonRelevant, s.Errored)

	if len(c.Events) == 0 {
		b.WriteString("No events in this collection.\n")
		return b.String()
	}

	currentDate := ""
	for _, ev := range c.Events {
		date := ev.StartDate
		if date == "" {
			date = "Undated"
		}
		if date != currentDate {
			fmt.Fprintf(&b, "## %s\n\n", date)
			currentDate = date
		}
		b.WriteString(eventSection(ev))
		b.WriteString("\n")
	}

	if len(c.NonRelevant) > 0 {
		b.WriteString("---\n\n## Filtered as non-relevant\n\n")
		for _, ev := range c.NonRelevant {
			fmt.Fprintf(&b, "- %s ([source](%s))\n", ev.Title, ev.SourceURL)
		}
	}

	return b.String()
}

func eventSection(ev event.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s\n\n", ev.Title)
	if ev.Blurb != "" {
		fmt.Fprintf(&b, "%s\n\n", ev.Blurb)
	}

	var details []string
	if ev.VenueName != "" {
		details = append(details, "**Venue:** "+ev.VenueName)
	}
	if ev.TimeDisplay != "" {
		details = append(details, "**When:** "+ev.TimeDisplay)
	}
	if ev.PriceDisplay != "" {
		details = append(details, "**Price:** "+ev.PriceDisplay)
	} else if ev.IsFree {
		details = append(details, "**Price:** Free")
	}
	if ev.AgeDisplay != "" {
		details = append(details, "**Ages:** "+ev.AgeDisplay)
	}
	if len(details) > 0 {
		b.WriteString(strings.Join(details, " · ") + "\n\n")
	}

	links := []string{fmt.Sprintf("[source](%s)", ev.SourceURL)}
	if ev.EventURL != "" {
		links = append([]string{fmt.Sprintf("[event page](%s)", ev.EventURL)}, links...)
	}
	b.WriteString(strings.Join(links, " · ") + "\n")

	return b.String()
}

// Write composes the digest and stores it inside the collection folder.
func Write(c *collection.Collection, s Summary) error {
	path := filepath.Join(c.Dir, DigestFile)
	if err := os.WriteFile(path, []byte(Compose(c, s)), 0o644); err != nil {
		return fmt.Errorf("writing digest: %w", err)
	}
	return nil
}
