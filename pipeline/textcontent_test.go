package pipeline

import (
	"strings"
	"testing"

	"github.com/moritzg809/eateateat/models"
)

func TestBuildTextContentAllSources(t *testing.T) {
	r := &models.Restaurant{
		RawData:    `{"description":"Seafood by the marina","types":["seafood_restaurant"]}`,
		Categories: models.StringList{"Meeresfrüchte-Restaurant"},
	}
	d := &models.PlaceDetails{
		Atmosphere: models.StringList{"Cozy"},
		Highlights: models.StringList{"Great cocktails", "Rooftop"},
	}
	e := &models.Enrichment{
		SummaryDE: "Fisch direkt am Hafen.",
		MustOrder: "Paella",
		Vibe:      "maritime",
	}

	text := BuildTextContent(r, d, e)
	lines := strings.Split(text, "\n")
	want := []string{
		"description: Seafood by the marina",
		"types: seafood_restaurant",
		"categories: Meeresfrüchte-Restaurant",
		"atmosphere: Cozy",
		"highlights: Great cocktails, Rooftop",
		"summary_de: Fisch direkt am Hafen.",
		"must_order: Paella",
		"vibe: maritime",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), text)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestBuildTextContentEmptyFieldsOmitted(t *testing.T) {
	r := &models.Restaurant{}
	if got := BuildTextContent(r, nil, nil); got != "" {
		t.Fatalf("empty restaurant produced %q", got)
	}

	r.Categories = models.StringList{"", "Tapas"}
	got := BuildTextContent(r, nil, nil)
	if got != "categories: Tapas" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildTextContentIgnoresBrokenRawData(t *testing.T) {
	r := &models.Restaurant{
		RawData:    `{not json`,
		Categories: models.StringList{"Bar"},
	}
	if got := BuildTextContent(r, nil, nil); got != "categories: Bar" {
		t.Fatalf("got %q", got)
	}
}

func TestParseRawPlaceOpeningHours(t *testing.T) {
	raw := parseRawPlace(`{"openingHours":{"Montag":"12:00–14:00","Dienstag":"Geschlossen"}}`)
	if len(raw.OpeningHours) != 2 {
		t.Fatalf("opening hours = %v", raw.OpeningHours)
	}
	if raw.OpeningHours["Montag"] != "12:00–14:00" {
		t.Fatalf("Montag = %q", raw.OpeningHours["Montag"])
	}
}
