// Package geocode resolves venue names and addresses to coordinates
// via the Google Places text search API. The pipeline works fine with
// partially geocoded events; failures here never drop a candidate.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/janlim/eventscout/internal/event"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"

// Place is one resolved location.
type Place struct {
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
}

// Client calls the Places text search endpoint.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Client reading its key from the named env variable.
func New(apiKeyEnv string) *Client {
	return &Client{
		apiKey:  os.Getenv(apiKeyEnv),
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Lookup resolves a free-text venue query to a place. Returns nil
// without error when the API finds nothing.
func (c *Client) Lookup(ctx context.Context, query string) (*Place, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("places API key not configured")
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("places API returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Status  string `json:"status"`
		Results []struct {
			Name             string `json:"name"`
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding places response: %w", err)
	}

	if result.Status == "ZERO_RESULTS" || len(result.Results) == 0 {
		return nil, nil
	}
	if result.Status != "OK" {
		return nil, fmt.Errorf("places API status %s", result.Status)
	}

	first := result.Results[0]
	return &Place{
		Name:      first.Name,
		Address:   first.FormattedAddress,
		Latitude:  first.Geometry.Location.Lat,
		Longitude: first.Geometry.Location.Lng,
	}, nil
}

// FillCoordinates geocodes every event that has a venue or address but
// no coordinates yet, in place. Lookup failures are logged per event
// and never abort the batch.
func (c *Client) FillCoordinates(ctx context.Context, events []event.Event) {
	for i := range events {
		ev := &events[i]
		if ev.HasCoordinates() {
			continue
		}

		query := ev.FullAddress
		if query == "" {
			query = ev.VenueName
		}
		if query == "" {
			continue
		}

		place, err := c.Lookup(ctx, query)
		if err != nil {
			log.Printf("Geocoding %q: %v", query, err)
			continue
		}
		if place == nil {
			log.Printf("No geocoding result for %q", query)
			continue
		}

		ev.Latitude = place.Latitude
		ev.Longitude = place.Longitude
		if ev.FullAddress == "" {
			ev.FullAddress = place.Address
		}
	}
}
