package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/moritzg809/eateateat/keys"
)

const defaultSerperMapsURL = "https://google.serper.dev/maps"

// SerperClient implements SearchClient against the Serper Maps endpoint.
type SerperClient struct {
	HTTP     *http.Client
	Rotator  *keys.Rotator
	BaseURL  string
	Language string // hl parameter
	Country  string // gl parameter
	Num      int    // results per call
	Retries  int
}

func NewSerperClient(rotator *keys.Rotator, language, country string, num int) *SerperClient {
	return &SerperClient{
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Rotator:  rotator,
		BaseURL:  defaultSerperMapsURL,
		Language: language,
		Country:  country,
		Num:      num,
		Retries:  3,
	}
}

func (c *SerperClient) SearchPlaces(ctx context.Context, term, location string) (*SearchResponse, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"q":   term + " " + location,
		"gl":  c.Country,
		"hl":  c.Language,
		"num": c.Num,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, status, err := c.post(ctx, payload)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("serper: %w", ErrRateLimited)
			if c.Rotator.Rotate() {
				continue // sibling key, no backoff needed
			}
			log.Printf("serper: all keys exhausted, cooling down %s", exhaustedCooldown)
			if err := sleep(ctx, exhaustedCooldown); err != nil {
				return nil, err
			}
			c.Rotator.Reset()
			continue
		case status != http.StatusOK:
			lastErr = fmt.Errorf("serper: HTTP %d", status)
		default:
			resp, perr := ParseSearchResponse(body)
			if perr != nil {
				lastErr = perr
			} else {
				c.Rotator.Reset()
				return resp, nil
			}
		}
		if attempt < c.Retries {
			wait := backoff(attempt)
			log.Printf("serper: %v — retrying in %s (%d/%d)", lastErr, wait, attempt, c.Retries)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *SerperClient) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-API-KEY", c.Rotator.Current())
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("serper: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// ParseSearchResponse decodes a raw maps search payload. The search stage
// also uses it to replay cached responses without a provider call.
func ParseSearchResponse(body []byte) (*SearchResponse, error) {
	var envelope struct {
		Places []json.RawMessage `json:"places"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("serper: %w: %v", ErrParseFailure, err)
	}
	out := &SearchResponse{Raw: json.RawMessage(body)}
	for _, raw := range envelope.Places {
		var p Place
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("serper: %w: place entry: %v", ErrParseFailure, err)
		}
		p.Raw = raw
		out.Places = append(out.Places, p)
	}
	return out, nil
}
