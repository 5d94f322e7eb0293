package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/moritzg809/eateateat/models"
)

func TestCompletenessPromotesFullEnrichment(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())

	seedComplete(t, db, "p1", models.StatusEnriched)
	db.Create(&models.Enrichment{
		PlaceID:      "p1",
		FamilyScore:  intp(8),
		DateScore:    intp(7),
		FriendsScore: intp(9),
		SoloScore:    intp(5),
		RelaxedScore: intp(8),
		SummaryDE:    "Schönes Lokal.",
		Vibe:         "cozy",
		EnrichedAt:   time.Now(),
	})

	stats, err := p.runCompleteness(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.OK != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	var r models.Restaurant
	db.Where("place_id = ?", "p1").First(&r)
	if r.PipelineStatus != models.StatusComplete {
		t.Fatalf("status = %s, want complete", r.PipelineStatus)
	}
	if r.LastVerifiedAt == nil {
		t.Fatal("promotion to complete must stamp last_verified_at")
	}
}

func TestCompletenessKeepsThinEnrichment(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())

	cases := []models.Enrichment{
		// Only four scores set.
		{PlaceID: "few-scores", FamilyScore: intp(8), DateScore: intp(7),
			FriendsScore: intp(9), SoloScore: intp(5),
			SummaryDE: "Text.", Vibe: "cozy", EnrichedAt: time.Now()},
		// Missing vibe.
		{PlaceID: "no-vibe", FamilyScore: intp(8), DateScore: intp(7),
			FriendsScore: intp(9), SoloScore: intp(5), RelaxedScore: intp(8),
			SummaryDE: "Text.", EnrichedAt: time.Now()},
		// Missing summary.
		{PlaceID: "no-summary", FamilyScore: intp(8), DateScore: intp(7),
			FriendsScore: intp(9), SoloScore: intp(5), RelaxedScore: intp(8),
			Vibe: "cozy", EnrichedAt: time.Now()},
	}
	for i := range cases {
		seedComplete(t, db, cases[i].PlaceID, models.StatusEnriched)
		db.Create(&cases[i])
	}

	stats, err := p.runCompleteness(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.OK != 0 || stats.Empty != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, c := range cases {
		var r models.Restaurant
		db.Where("place_id = ?", c.PlaceID).First(&r)
		if r.PipelineStatus != models.StatusEnriched {
			t.Errorf("%s promoted despite incomplete enrichment", c.PlaceID)
		}
	}
}

func TestCompletenessMissingEnrichmentRowIsError(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	seedComplete(t, db, "orphan", models.StatusEnriched)

	stats, err := p.runCompleteness(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestIsComplete(t *testing.T) {
	full := &models.Enrichment{
		FamilyScore: intp(1), DateScore: intp(1), FriendsScore: intp(1),
		SoloScore: intp(1), RelaxedScore: intp(1),
		SummaryDE: "s", Vibe: "v",
	}
	if !isComplete(full) {
		t.Fatal("five scores plus texts should be complete")
	}
	full.RelaxedScore = nil
	if isComplete(full) {
		t.Fatal("four scores must not be complete")
	}
}
