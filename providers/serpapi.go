package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/moritzg809/eateateat/keys"
)

const defaultSerpAPIURL = "https://serpapi.com/search"

// SerpAPIClient implements DetailsClient against the SerpAPI Google Maps
// place endpoint, addressed by decimal CID.
type SerpAPIClient struct {
	HTTP    *http.Client
	Rotator *keys.Rotator
	BaseURL string
	Retries int
}

func NewSerpAPIClient(rotator *keys.Rotator) *SerpAPIClient {
	return &SerpAPIClient{
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Rotator: rotator,
		BaseURL: defaultSerpAPIURL,
		Retries: 5,
	}
}

func (c *SerpAPIClient) FetchDetails(ctx context.Context, dataCID string) (*PlaceDetails, error) {
	var lastErr error
	for attempt := 1; attempt <= c.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, status, err := c.get(ctx, dataCID)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("serpapi: %w", ErrRateLimited)
			if c.Rotator.Rotate() {
				continue
			}
			log.Printf("serpapi: all keys exhausted, cooling down %s", exhaustedCooldown)
			if err := sleep(ctx, exhaustedCooldown); err != nil {
				return nil, err
			}
			c.Rotator.Reset()
			continue
		case status != http.StatusOK:
			lastErr = fmt.Errorf("serpapi: HTTP %d", status)
		default:
			details, perr := parseDetailsResponse(body)
			if perr != nil {
				lastErr = perr
			} else {
				c.Rotator.Reset()
				return details, nil
			}
		}
		if attempt < c.Retries {
			wait := backoff(attempt)
			log.Printf("serpapi: %v — retrying in %s (%d/%d)", lastErr, wait, attempt, c.Retries)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *SerpAPIClient) get(ctx context.Context, dataCID string) ([]byte, int, error) {
	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("type", "place")
	params.Set("data_cid", dataCID)
	params.Set("hl", "en") // English for consistent field names
	params.Set("api_key", c.Rotator.Current())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("serpapi: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("serpapi: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func parseDetailsResponse(body []byte) (*PlaceDetails, error) {
	var envelope struct {
		Error        string `json:"error"`
		PlaceResults struct {
			// extensions is an array of single-key objects, e.g.
			// [{"highlights": [...]}, {"offerings": [...]}]
			Extensions          []map[string][]string `json:"extensions"`
			ServiceOptions      json.RawMessage       `json:"service_options"`
			PermanentlyClosed   bool                  `json:"permanently_closed"`
			TemporarilyClosed   bool                  `json:"temporarily_closed"`
			ClosedOnPermanently bool                  `json:"closed_on_permanently"`
		} `json:"place_results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("serpapi: %w: %v", ErrParseFailure, err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("serpapi: provider error: %s", envelope.Error)
	}

	tags := make(map[string][]string)
	for _, ext := range envelope.PlaceResults.Extensions {
		for k, v := range ext {
			tags[k] = v
		}
	}
	rawExt, _ := json.Marshal(tags)

	return &PlaceDetails{
		Tags:              tags,
		ServiceOptions:    envelope.PlaceResults.ServiceOptions,
		PermanentlyClosed: envelope.PlaceResults.PermanentlyClosed || envelope.PlaceResults.ClosedOnPermanently,
		TemporarilyClosed: envelope.PlaceResults.TemporarilyClosed,
		Raw:               json.RawMessage(body),
		RawExtensions:     rawExt,
	}, nil
}
