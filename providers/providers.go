// Package providers defines the capability contracts the pipeline consumes
// — maps search, place details, LLM enrichment and text embedding — plus
// HTTP implementations with key rotation and backoff.
package providers

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrRateLimited marks a provider 429. The caller rotates to a sibling key
// first and pays the full cooldown only once the pool is exhausted.
var ErrRateLimited = errors.New("providers: rate limited")

// ErrParseFailure marks a malformed provider response.
var ErrParseFailure = errors.New("providers: parse failure")

// Place is one entry of a maps search response.
type Place struct {
	PlaceID      string            `json:"placeId"`
	CID          string            `json:"cid"`
	Title        string            `json:"title"`
	Address      string            `json:"address"`
	Rating       float64           `json:"rating"`
	RatingCount  int               `json:"ratingCount"`
	Categories   []string          `json:"categories"`
	Types        []string          `json:"types"`
	PriceLevel   string            `json:"priceLevel"`
	Phone        string            `json:"phoneNumber"`
	Website      string            `json:"website"`
	Latitude     *float64          `json:"latitude"`
	Longitude    *float64          `json:"longitude"`
	ThumbnailURL string            `json:"thumbnailUrl"`
	Description  string            `json:"description"`
	OpeningHours map[string]string `json:"openingHours"`

	Raw json.RawMessage `json:"-"`
}

// Identifier returns the stable place key, preferring placeId over cid.
func (p *Place) Identifier() string {
	if p.PlaceID != "" {
		return p.PlaceID
	}
	return p.CID
}

// SearchResponse is the parsed result of one maps search call.
type SearchResponse struct {
	Places []Place
	Raw    json.RawMessage
}

// PlaceDetails is the parsed result of one place-details call.
type PlaceDetails struct {
	Tags              map[string][]string
	ServiceOptions    json.RawMessage
	PermanentlyClosed bool
	TemporarilyClosed bool
	Raw               json.RawMessage
	RawExtensions     json.RawMessage
}

// IsClosed reports whether the provider data indicates the place is
// permanently or temporarily closed.
func IsClosed(d *PlaceDetails) bool {
	return d != nil && (d.PermanentlyClosed || d.TemporarilyClosed)
}

// EnrichmentResult is the parsed LLM output for one restaurant.
type EnrichmentResult struct {
	Family    *int `json:"family"`
	Date      *int `json:"date"`
	Friends   *int `json:"friends"`
	Solo      *int `json:"solo"`
	Relaxed   *int `json:"relaxed"`
	Party     *int `json:"party"`
	Special   *int `json:"special"`
	Foodie    *int `json:"foodie"`
	Lingering *int `json:"lingering"`
	Unique    *int `json:"unique"`
	Dresscode *int `json:"dresscode"`

	SummaryDE string `json:"summary_de"`
	MustOrder string `json:"must_order"`
	Vibe      string `json:"vibe"`

	Model string          `json:"-"`
	Raw   json.RawMessage `json:"-"`
}

// SearchClient fetches a place list for a query and location.
type SearchClient interface {
	SearchPlaces(ctx context.Context, term, location string) (*SearchResponse, error)
}

// DetailsClient fetches categorized detail tags for a place.
type DetailsClient interface {
	FetchDetails(ctx context.Context, dataCID string) (*PlaceDetails, error)
}

// Enricher produces profile scores and descriptive text for a place.
type Enricher interface {
	Enrich(ctx context.Context, name, address string, lat, lng *float64) (*EnrichmentResult, error)
}

// Embedder converts a batch of texts into dense float vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}
