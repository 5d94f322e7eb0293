package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/moritzg809/eateateat/keys"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultEnrichModel   = "gemini-3-flash-preview"
	defaultEmbedModel    = "gemini-embedding-001"
)

const enrichPromptTemplate = `You are an honest local insider with high standards, not a tourism brochure.
Look up "%s" (%s) on Google Maps and read the real reviews.

Rate the place for 11 travel profiles (whole numbers 1-10):
family, date, friends, solo, relaxed, party, special, foodie, lingering, unique, dresscode.
If you are unsure about a dimension, answer null for it.

Also write three text fields:
summary_de - exactly 2 sentences: concept plus 1-2 hard facts, then what actually
happens there (who sits where, what you hear and smell). No marketing phrases.
must_order - 1-2 concrete dishes or drinks with their full names, no generic terms.
vibe - 1 sentence: light, volume, who is there, at what time. No judgements.

Answer ONLY with this JSON (no markdown, no text before or after):
{"family": <int>, "date": <int>, "friends": <int>, "solo": <int>, "relaxed": <int>,
 "party": <int>, "special": <int>, "foodie": <int>, "lingering": <int>,
 "unique": <int>, "dresscode": <int>,
 "summary_de": "<2 sentences>", "must_order": "<dishes>", "vibe": "<1 sentence>"}`

// GeminiClient implements both Enricher and Embedder against the Google
// generative-language API.
type GeminiClient struct {
	HTTP        *http.Client
	Rotator     *keys.Rotator
	BaseURL     string
	EnrichModel string
	EmbedModel  string
	Retries     int
}

func NewGeminiClient(rotator *keys.Rotator) *GeminiClient {
	return &GeminiClient{
		HTTP:        &http.Client{Timeout: 60 * time.Second},
		Rotator:     rotator,
		BaseURL:     defaultGeminiBaseURL,
		EnrichModel: defaultEnrichModel,
		EmbedModel:  defaultEmbedModel,
		Retries:     3,
	}
}

func (c *GeminiClient) Enrich(ctx context.Context, name, address string, lat, lng *float64) (*EnrichmentResult, error) {
	if address == "" {
		address = "unknown address"
	}
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": fmt.Sprintf(enrichPromptTemplate, name, address)}}},
		},
		"tools":            []map[string]interface{}{{"googleMaps": map[string]interface{}{}}},
		"generationConfig": map[string]interface{}{"temperature": 0.3},
	}
	if lat != nil && lng != nil {
		payload["toolConfig"] = map[string]interface{}{
			"retrievalConfig": map[string]interface{}{
				"latLng": map[string]float64{"latitude": *lat, "longitude": *lng},
			},
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", c.BaseURL, c.EnrichModel)
	var lastErr error
	for attempt := 1; attempt <= c.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		respBody, status, err := c.post(ctx, endpoint, body)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("gemini: %w", ErrRateLimited)
			if c.Rotator.Rotate() {
				continue
			}
			log.Printf("gemini: all keys exhausted, cooling down %s", exhaustedCooldown)
			if err := sleep(ctx, exhaustedCooldown); err != nil {
				return nil, err
			}
			c.Rotator.Reset()
			continue
		case status != http.StatusOK:
			lastErr = fmt.Errorf("gemini: HTTP %d", status)
		default:
			result, perr := parseEnrichResponse(respBody)
			if perr != nil {
				lastErr = perr // malformed model output, retry a fixed number of times
			} else {
				c.Rotator.Reset()
				result.Model = c.EnrichModel
				return result, nil
			}
		}
		if attempt < c.Retries {
			wait := backoff(attempt)
			log.Printf("gemini: %v — retrying in %s (%d/%d)", lastErr, wait, attempt, c.Retries)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *GeminiClient) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	requests := make([]map[string]interface{}, 0, len(texts))
	for _, t := range texts {
		requests = append(requests, map[string]interface{}{
			"model":    "models/" + c.EmbedModel,
			"content":  map[string]interface{}{"parts": []map[string]string{{"text": t}}},
			"taskType": "SEMANTIC_SIMILARITY",
		})
	}
	body, err := json.Marshal(map[string]interface{}{"requests": requests})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s:batchEmbedContents", c.BaseURL, c.EmbedModel)
	var lastErr error
	for attempt := 1; attempt <= c.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		respBody, status, err := c.post(ctx, endpoint, body)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("gemini: %w", ErrRateLimited)
			if c.Rotator.Rotate() {
				continue
			}
			if err := sleep(ctx, exhaustedCooldown); err != nil {
				return nil, err
			}
			c.Rotator.Reset()
			continue
		case status != http.StatusOK:
			lastErr = fmt.Errorf("gemini: HTTP %d", status)
		default:
			var envelope struct {
				Embeddings []struct {
					Values []float64 `json:"values"`
				} `json:"embeddings"`
			}
			if perr := json.Unmarshal(respBody, &envelope); perr != nil {
				lastErr = fmt.Errorf("gemini: %w: %v", ErrParseFailure, perr)
				break
			}
			if len(envelope.Embeddings) != len(texts) {
				lastErr = fmt.Errorf("gemini: %w: got %d embeddings for %d texts",
					ErrParseFailure, len(envelope.Embeddings), len(texts))
				break
			}
			c.Rotator.Reset()
			vectors := make([][]float64, len(texts))
			for i, e := range envelope.Embeddings {
				vectors[i] = e.Values
			}
			return vectors, nil
		}
		if attempt < c.Retries {
			wait := backoff(attempt)
			log.Printf("gemini embed: %v — retrying in %s (%d/%d)", lastErr, wait, attempt, c.Retries)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *GeminiClient) post(ctx context.Context, endpoint string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+c.Rotator.Current(), bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("gemini: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

var codeFenceRe = regexp.MustCompile("```(?:json)?\\s*")

// extractJSON strips optional markdown code fences around the model output.
func extractJSON(text string) string {
	text = codeFenceRe.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), "`"))
}

func parseEnrichResponse(body []byte) (*EnrichmentResult, error) {
	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("gemini: %w: %v", ErrParseFailure, err)
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: %w: empty candidates", ErrParseFailure)
	}
	text := extractJSON(envelope.Candidates[0].Content.Parts[0].Text)
	var result EnrichmentResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("gemini: %w: model output: %v", ErrParseFailure, err)
	}
	result.Raw = json.RawMessage(body)
	return &result, nil
}
