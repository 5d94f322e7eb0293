package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/moritzg809/eateateat/config"
	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/providers"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&models.Restaurant{}, &models.Enrichment{}, &models.PlaceDetails{},
		&models.Embedding{}, &models.SearchQuery{}, &models.SearchCache{},
		&models.SearchResult{},
	)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SearchTerms = []string{"Brunch"}
	cfg.Locations = []string{"Palma"}
	return cfg
}

func newTestPipeline(t *testing.T, db *gorm.DB, cfg *config.Config) *Pipeline {
	t.Helper()
	p := New(db, cfg)
	p.Limiter = nil // no pacing in tests
	return p
}

func seedComplete(t *testing.T, db *gorm.DB, placeID string, status models.PipelineStatus) *models.Restaurant {
	t.Helper()
	r := models.Restaurant{
		PlaceID:        placeID,
		DataCID:        "cid-" + placeID,
		Name:           "Restaurant " + placeID,
		Address:        "Carrer de Test 1, Palma",
		Rating:         4.8,
		RatingCount:    300,
		IsActive:       true,
		PipelineStatus: status,
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatal(err)
	}
	return &r
}

func intp(n int) *int { return &n }

// ── fake providers ─────────────────────────────────────────────────────

type fakeSearch struct {
	calls int
	resp  *providers.SearchResponse
	err   error
}

func (f *fakeSearch) SearchPlaces(ctx context.Context, term, location string) (*providers.SearchResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeDetails struct {
	calls   int
	details *providers.PlaceDetails
	err     error
}

func (f *fakeDetails) FetchDetails(ctx context.Context, dataCID string) (*providers.PlaceDetails, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

type fakeEnricher struct {
	calls  int
	result *providers.EnrichmentResult
	err    error
}

func (f *fakeEnricher) Enrich(ctx context.Context, name, address string, lat, lng *float64) (*providers.EnrichmentResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEmbedder struct {
	calls int
	dim   int
	err   error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	dim := f.dim
	if dim == 0 {
		dim = 4
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		v := make([]float64, dim)
		v[i%dim] = 1
		out[i] = v
	}
	return out, nil
}

func fullEnrichmentResult() *providers.EnrichmentResult {
	return &providers.EnrichmentResult{
		Family: intp(8), Date: intp(7), Friends: intp(9), Solo: intp(5),
		Relaxed: intp(8), Party: intp(3), Special: intp(6), Foodie: intp(9),
		Lingering: intp(7), Unique: intp(6), Dresscode: intp(2),
		SummaryDE: "Gemütliches Lokal mit moderner Küche.",
		MustOrder: "Gambas al ajillo",
		Vibe:      "relaxed",
		Model:     "test-model",
		Raw:       []byte(`{}`),
	}
}

func searchPayload(places ...string) []byte {
	body := `{"places":[`
	for i, id := range places {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"placeId":%q,"cid":"c-%s","title":"Place %s","address":"Palma","rating":4.8,"ratingCount":300,"priceLevel":"€€","categories":["Restaurant"]}`, id, id, id)
	}
	return []byte(body + `]}`)
}

func TestRunUnknownStage(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	if _, err := p.Run(context.Background(), Options{Stages: []string{"nonsense"}}); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx, Options{Stages: []string{"qualify"}}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{OK: 2, Errors: 1}
	got := s.String()
	want := "ok=2 empty=0 cached=0 api_calls=0 closed=0 disqualified=0 requalified=0 errors=1"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
