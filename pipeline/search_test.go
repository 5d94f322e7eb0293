package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/providers"
)

func TestSearchSavesPlacesAndCaches(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	resp, err := providers.ParseSearchResponse(searchPayload("p1", "p2"))
	if err != nil {
		t.Fatal(err)
	}
	search := &fakeSearch{resp: resp}
	p.Search = search

	stats, err := p.runSearch(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if search.calls != 1 {
		t.Fatalf("search calls = %d, want 1", search.calls)
	}
	if stats.OK != 2 || stats.APICalls != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var count int64
	db.Model(&models.Restaurant{}).Count(&count)
	if count != 2 {
		t.Fatalf("restaurants = %d, want 2", count)
	}
	var r models.Restaurant
	if err := db.Where("place_id = ?", "p1").First(&r).Error; err != nil {
		t.Fatal(err)
	}
	if r.PipelineStatus != models.StatusNew {
		t.Fatalf("status = %s, want new", r.PipelineStatus)
	}
	if r.PriceLevel != "€€" {
		t.Fatalf("price level = %q", r.PriceLevel)
	}

	// Rank positions are recorded against the cached response.
	var results []models.SearchResult
	db.Order("position ASC").Find(&results)
	if len(results) != 2 || results[0].Position != 1 || results[1].Position != 2 {
		t.Fatalf("search results = %+v", results)
	}
}

func TestSearchUsesCacheOnSecondRun(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	resp, _ := providers.ParseSearchResponse(searchPayload("p1"))
	search := &fakeSearch{resp: resp}
	p.Search = search

	if _, err := p.runSearch(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	// Make the query due again but keep the cache row: the second run must
	// replay the cached response without a provider call.
	db.Model(&models.SearchQuery{}).Where("1 = 1").Update("last_run_at", nil)

	stats, err := p.runSearch(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if search.calls != 1 {
		t.Fatalf("provider called again despite cache: calls = %d", search.calls)
	}
	if stats.Cached != 1 || stats.APICalls != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSearchForceBypassesCache(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	resp, _ := providers.ParseSearchResponse(searchPayload("p1"))
	search := &fakeSearch{resp: resp}
	p.Search = search

	if _, err := p.runSearch(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.runSearch(context.Background(), Options{ForceSearch: true}); err != nil {
		t.Fatal(err)
	}
	if search.calls != 2 {
		t.Fatalf("force run should call the provider again, calls = %d", search.calls)
	}
}

func TestSearchSkipsFreshQueries(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	search := &fakeSearch{}
	p.Search = search

	now := time.Now()
	db.Create(&models.SearchQuery{Term: "Brunch", Location: "Palma", LastRunAt: &now, Status: "ok"})

	stats, err := p.runSearch(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if search.calls != 0 {
		t.Fatalf("fresh query triggered a provider call")
	}
	if stats.APICalls != 0 || stats.Cached != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSearchErrorMarksQuery(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	p.Search = &fakeSearch{err: errors.New("boom")}

	stats, err := p.runSearch(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	var q models.SearchQuery
	db.Where("term = ? AND location = ?", "Brunch", "Palma").First(&q)
	if q.Status != "error" {
		t.Fatalf("query status = %q, want error", q.Status)
	}
	if q.LastRunAt == nil {
		t.Fatal("last_run_at must be stamped even on failure")
	}
}

func TestSearchDueOrderingNeverRunFirst(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	p := newTestPipeline(t, db, cfg)

	now := time.Now()
	sevenMonths := now.Add(-7 * 30 * 24 * time.Hour)
	twoMonths := now.Add(-2 * 30 * 24 * time.Hour)
	db.Create(&models.SearchQuery{Term: "Old", Location: "Palma", LastRunAt: &sevenMonths})
	db.Create(&models.SearchQuery{Term: "Fresh", Location: "Palma", LastRunAt: &twoMonths})
	db.Create(&models.SearchQuery{Term: "Never", Location: "Palma"})

	due, err := p.dueQueries(false)
	if err != nil {
		t.Fatal(err)
	}
	// TTL is 182 days: the 2-month-old query is fresh, the never-run query
	// sorts before the 7-month-old one.
	if len(due) != 2 {
		t.Fatalf("due = %d queries, want 2", len(due))
	}
	if due[0].Term != "Never" || due[1].Term != "Old" {
		t.Fatalf("due order = %s, %s", due[0].Term, due[1].Term)
	}

	due, err = p.dueQueries(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 3 {
		t.Fatalf("forced due = %d queries, want 3", len(due))
	}
}

func TestSearchDryRunWritesNothing(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	search := &fakeSearch{}
	p.Search = search

	if _, err := p.runSearch(context.Background(), Options{DryRun: true}); err != nil {
		t.Fatal(err)
	}
	if search.calls != 0 {
		t.Fatal("dry run must not call the provider")
	}
	var count int64
	db.Model(&models.Restaurant{}).Count(&count)
	if count != 0 {
		t.Fatalf("dry run wrote %d restaurants", count)
	}
}

func TestSearchUpsertPreservesLifecycleFields(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())

	r := seedComplete(t, db, "p1", models.StatusComplete)
	verified := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.Model(r).Updates(map[string]interface{}{
		"last_verified_at": verified,
		"open_slots":       models.StringList{"Mo12"},
	})

	resp, _ := providers.ParseSearchResponse(searchPayload("p1"))
	p.Search = &fakeSearch{resp: resp}
	if _, err := p.runSearch(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	var after models.Restaurant
	db.Where("place_id = ?", "p1").First(&after)
	if after.PipelineStatus != models.StatusComplete {
		t.Fatalf("re-discovery downgraded status to %s", after.PipelineStatus)
	}
	if after.LastVerifiedAt == nil || !after.LastVerifiedAt.Equal(verified) {
		t.Fatalf("last_verified_at overwritten: %v", after.LastVerifiedAt)
	}
	if len(after.OpenSlots) != 1 || after.OpenSlots[0] != "Mo12" {
		t.Fatalf("open_slots overwritten: %v", after.OpenSlots)
	}
	if after.Name != "Place p1" {
		t.Fatalf("descriptive fields should refresh, name = %q", after.Name)
	}
}
