package collect

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/janlim/eventscout/internal/config"
	"github.com/janlim/eventscout/internal/event"
)

const maxPerFeed = 20

// FeedCollector pulls candidate articles from configured RSS/Atom feeds.
type FeedCollector struct {
	feeds []config.Feed
}

// NewFeedCollector creates a FeedCollector.
func NewFeedCollector(feeds []config.Feed) *FeedCollector {
	return &FeedCollector{feeds: feeds}
}

// Collect parses all configured feeds and returns articles published
// within daysBack. Feed failures are logged and skipped; one dead feed
// must not starve the others.
func (fc *FeedCollector) Collect(ctx context.Context, daysBack int) []event.Article {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	var all []event.Article

	parser := gofeed.NewParser()
	for _, feed := range fc.feeds {
		name := feed.Name
		if name == "" {
			name = sourceNameFromURL(feed.URL)
		}

		articles, err := parseFeed(ctx, parser, feed.URL, name, cutoff)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", feed.URL, err)
			continue
		}
		all = append(all, articles...)
		log.Printf("Parsed %d articles from %s (within %d days)", len(articles), name, daysBack)
	}

	return all
}

func parseFeed(ctx context.Context, parser *gofeed.Parser, feedURL, sourceID string, cutoff time.Time) ([]event.Article, error) {
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var articles []event.Article
	for _, item := range feed.Items {
		if len(articles) >= maxPerFeed {
			break
		}

		article := parseItem(item, sourceID)
		if article == nil {
			continue
		}
		if withinWindow(article.Published, cutoff) {
			articles = append(articles, *article)
		}
	}

	return articles, nil
}

func parseItem(item *gofeed.Item, sourceID string) *event.Article {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	id := item.GUID
	if id == "" {
		id = itemURL
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format("2006-01-02")
	}

	var content string
	if item.Content != "" {
		content = stripHTML(item.Content)
	} else if item.Description != "" {
		content = stripHTML(item.Description)
	}

	return &event.Article{
		SourceID:  sourceID,
		ID:        id,
		URL:       itemURL,
		Title:     title,
		Published: published,
		Content:   content,
	}
}

func withinWindow(published string, cutoff time.Time) bool {
	if published == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse("2006-01-02", published)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}

func sourceNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return host
}
