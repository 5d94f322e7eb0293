package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/moritzg809/eateateat/models"
)

// rawPlaceFields are the bits of the raw search payload used for the
// embedding text and the open-slots computation.
type rawPlaceFields struct {
	Description  string            `json:"description"`
	Types        []string          `json:"types"`
	OpeningHours map[string]string `json:"openingHours"`
}

func parseRawPlace(rawData string) rawPlaceFields {
	var raw rawPlaceFields
	if rawData != "" {
		_ = json.Unmarshal([]byte(rawData), &raw) // best effort, missing fields stay empty
	}
	return raw
}

// BuildTextContent concatenates every available text field of a restaurant
// into one "field: value" block per line, the exact source text stored next
// to the embedding vector.
func BuildTextContent(r *models.Restaurant, d *models.PlaceDetails, e *models.Enrichment) string {
	var parts []string
	add := func(field, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, field+": "+value)
		}
	}
	addList := func(field string, values []string) {
		var kept []string
		for _, v := range values {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			parts = append(parts, field+": "+strings.Join(kept, ", "))
		}
	}

	raw := parseRawPlace(r.RawData)
	add("description", raw.Description)
	addList("types", raw.Types)
	addList("categories", r.Categories)

	if d != nil {
		addList("atmosphere", d.Atmosphere)
		addList("highlights", d.Highlights)
		addList("offerings", d.Offerings)
		addList("crowd", d.Crowd)
		addList("planning", d.Planning)
	}
	if e != nil {
		add("summary_de", e.SummaryDE)
		add("must_order", e.MustOrder)
		add("vibe", e.Vibe)
	}
	return strings.Join(parts, "\n")
}
