package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/providers"
)

func tagDetails() *providers.PlaceDetails {
	return &providers.PlaceDetails{
		Tags: map[string][]string{
			"highlights": {"Great cocktails", "Rooftop"},
			"atmosphere": {"Cozy", "Romantic"},
			"offerings":  {"Vegan options"},
		},
		Raw: []byte(`{}`),
	}
}

func TestDetailsFetchesAndSaves(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	details := &fakeDetails{details: tagDetails()}
	p.Details = details

	seedComplete(t, db, "p1", models.StatusComplete)

	stats, err := p.runDetails(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.OK != 1 || stats.APICalls != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	var d models.PlaceDetails
	if err := db.Where("place_id = ?", "p1").First(&d).Error; err != nil {
		t.Fatal(err)
	}
	if len(d.Highlights) != 2 || d.Highlights[0] != "Great cocktails" {
		t.Fatalf("highlights = %v", d.Highlights)
	}
	if len(d.Atmosphere) != 2 || len(d.Offerings) != 1 {
		t.Fatalf("tags not mapped: %+v", d)
	}
	if d.FetchedAt.IsZero() {
		t.Fatal("fetched_at not stamped")
	}
}

func TestDetailsPayOncePerPlace(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	details := &fakeDetails{details: tagDetails()}
	p.Details = details

	seedComplete(t, db, "p1", models.StatusComplete)

	if _, err := p.runDetails(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.runDetails(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	if details.calls != 1 {
		t.Fatalf("details fetched twice for the same place: %d", details.calls)
	}
}

func TestDetailsOnlyCompleteWithCID(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	details := &fakeDetails{details: tagDetails()}
	p.Details = details

	seedComplete(t, db, "new", models.StatusNew)
	noCID := seedComplete(t, db, "nocid", models.StatusComplete)
	db.Model(noCID).Update("data_cid", "")

	stats, err := p.runDetails(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if details.calls != 0 || stats.APICalls != 0 {
		t.Fatalf("ineligible places fetched: calls=%d stats=%+v", details.calls, stats)
	}
}

func TestDetailsClosedForcesInactive(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	p.Details = &fakeDetails{details: &providers.PlaceDetails{
		PermanentlyClosed: true,
		Raw:               []byte(`{}`),
	}}

	seedComplete(t, db, "p1", models.StatusComplete)

	stats, err := p.runDetails(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Closed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	var r models.Restaurant
	db.Where("place_id = ?", "p1").First(&r)
	if r.PipelineStatus != models.StatusInactive || r.IsActive {
		t.Fatalf("closed place not deactivated: status=%s active=%t", r.PipelineStatus, r.IsActive)
	}
}

func TestDetailsEmptyExtensions(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	p.Details = &fakeDetails{details: &providers.PlaceDetails{Raw: []byte(`{}`)}}

	seedComplete(t, db, "p1", models.StatusComplete)

	stats, err := p.runDetails(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Empty != 1 || stats.OK != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	// The row is still saved so the place is not refetched forever.
	var count int64
	db.Model(&models.PlaceDetails{}).Count(&count)
	if count != 1 {
		t.Fatalf("details rows = %d, want 1", count)
	}
}

func TestDetailsErrorContinues(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	p.Details = &fakeDetails{err: errors.New("upstream down")}

	seedComplete(t, db, "p1", models.StatusComplete)
	seedComplete(t, db, "p2", models.StatusComplete)

	stats, err := p.runDetails(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Errors != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}
