package collect

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/janlim/eventscout/internal/config"
	"github.com/janlim/eventscout/internal/event"
)

const maxPerCategory = 15

// defaultLinkSelector matches article links on typical blog listing
// pages when no selector is configured.
const defaultLinkSelector = "article a[href], h2 a[href], h3 a[href]"

// CategoryCollector scrapes blog category/listing pages for article
// links, for sources without a usable feed.
type CategoryCollector struct {
	categories []config.Category
	fetcher    *Fetcher
	client     *http.Client
}

// NewCategoryCollector creates a CategoryCollector.
func NewCategoryCollector(categories []config.Category, fetcher *Fetcher) *CategoryCollector {
	return &CategoryCollector{
		categories: categories,
		fetcher:    fetcher,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Collect scrapes every configured category page and fetches the
// readable text of each linked article. Page failures are logged and
// skipped.
func (cc *CategoryCollector) Collect(ctx context.Context) []event.Article {
	var all []event.Article

	for _, category := range cc.categories {
		name := category.Name
		if name == "" {
			name = sourceNameFromURL(category.URL)
		}

		links, err := cc.articleLinks(ctx, category)
		if err != nil {
			log.Printf("Failed to scrape category %s: %v", category.URL, err)
			continue
		}

		count := 0
		for _, link := range links {
			if count >= maxPerCategory {
				break
			}
			content, err := cc.fetcher.FetchContent(ctx, link)
			if err != nil || content == "" {
				continue
			}
			all = append(all, event.Article{
				SourceID: name,
				ID:       link,
				URL:      link,
				Title:    "",
				Content:  content,
			})
			count++
		}
		log.Printf("Scraped %d articles from category %s", count, name)
	}

	return all
}

// articleLinks extracts absolute article URLs from one listing page.
func (cc *CategoryCollector) articleLinks(ctx context.Context, category config.Category) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", category.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := cc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &httpError{code: resp.StatusCode, url: category.URL}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(category.URL)
	if err != nil {
		return nil, err
	}

	selector := category.LinkSelector
	if selector == "" {
		selector = defaultLinkSelector
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs := resolveLink(base, href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	return links, nil
}

// resolveLink makes href absolute against base and drops anchors,
// off-site links and non-article schemes.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if !strings.EqualFold(abs.Hostname(), base.Hostname()) {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
