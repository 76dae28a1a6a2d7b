// Package collect gathers candidate articles from feeds, category
// pages and direct submissions, gated by the processed-articles
// ledger so nothing is extracted twice.
package collect

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/janlim/eventscout/internal/config"
	"github.com/janlim/eventscout/internal/event"
	"github.com/janlim/eventscout/internal/ledger"
)

// Collector combines all article sources behind one ledger gate.
type Collector struct {
	db         *ledger.DB
	feeds      *FeedCollector
	categories *CategoryCollector
	fetcher    *Fetcher
}

// New creates a Collector from source configuration.
func New(db *ledger.DB, sources config.Sources) *Collector {
	fetcher := NewFetcher(15 * time.Second)
	return &Collector{
		db:         db,
		feeds:      NewFeedCollector(sources.Feeds),
		categories: NewCategoryCollector(sources.Categories, fetcher),
		fetcher:    fetcher,
	}
}

// Collect gathers fresh articles from every configured source,
// dropping anything already in the ledger and filling in missing
// article text. A ledger read failure is fatal: without the ledger
// gate the run would reprocess history.
func (c *Collector) Collect(ctx context.Context, daysBack int) ([]event.Article, error) {
	var candidates []event.Article
	candidates = append(candidates, c.feeds.Collect(ctx, daysBack)...)
	candidates = append(candidates, c.categories.Collect(ctx)...)

	var fresh []event.Article
	for _, article := range candidates {
		done, err := c.db.HasProcessed(article.SourceID, article.ID)
		if err != nil {
			return nil, fmt.Errorf("checking ledger for %s/%s: %w", article.SourceID, article.ID, err)
		}
		if done {
			continue
		}

		if len(article.Content) < minContentChars {
			content, err := c.fetcher.FetchContent(ctx, article.URL)
			if err != nil {
				log.Printf("Fetching %s: %v", article.URL, err)
				continue
			}
			if content == "" {
				log.Printf("No extractable content from %s", article.URL)
				continue
			}
			article.Content = content
		}
		fresh = append(fresh, article)
	}

	log.Printf("Collected %d fresh articles (%d seen before or unfetchable)", len(fresh), len(candidates)-len(fresh))
	return fresh, nil
}

// Submit fetches one directly supplied URL as an article, bypassing
// the feed window but still honoring the ledger.
func (c *Collector) Submit(ctx context.Context, articleURL string) (*event.Article, error) {
	sourceID := sourceNameFromURL(articleURL)

	done, err := c.db.HasProcessed(sourceID, articleURL)
	if err != nil {
		return nil, fmt.Errorf("checking ledger for %s: %w", articleURL, err)
	}
	if done {
		return nil, fmt.Errorf("article already processed: %s", articleURL)
	}

	content, err := c.fetcher.FetchContent(ctx, articleURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", articleURL, err)
	}
	if content == "" {
		return nil, fmt.Errorf("no extractable content at %s", articleURL)
	}

	return &event.Article{
		SourceID: sourceID,
		ID:       articleURL,
		URL:      articleURL,
		Content:  content,
	}, nil
}
