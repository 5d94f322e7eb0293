package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/providers"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// runEnrich calls the enrichment capability for qualified new restaurants,
// at most once per place_id and bounded by the daily quota. The stage
// self-limits its batch to min(limit, quota remaining) and exits early once
// the quota is spent — that is a normal signal, not an error.
func (p *Pipeline) runEnrich(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	dailyLimit := opts.DailyLimit
	if dailyLimit <= 0 {
		dailyLimit = p.Cfg.DailyEnrichLimit
	}
	today, err := p.countTodayEnrichments()
	if err != nil {
		return stats, err
	}
	remaining := dailyLimit - today
	if remaining <= 0 {
		log.Printf("[enrich] daily limit reached (%d/%d) — skipping", today, dailyLimit)
		return stats, nil
	}
	effective := remaining
	if opts.Limit > 0 && opts.Limit < remaining {
		effective = opts.Limit
	}

	rows, err := p.pendingEnrichments(effective)
	if err != nil {
		return stats, err
	}
	total := len(rows)
	log.Printf("[enrich] pending=%d today=%d/%d will process up to %d", total, today, dailyLimit, effective)

	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		prefix := logPrefix(i+1, total)

		if opts.DryRun {
			log.Printf("%s WOULD ENRICH %s", prefix, r.Name)
			continue
		}
		log.Printf("%s ENRICH %s", prefix, r.Name)
		if err := p.pace(ctx); err != nil {
			return stats, err
		}
		result, err := p.Enricher.Enrich(ctx, r.Name, r.Address, r.Latitude, r.Longitude)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Printf("%s -> enrich failed: %v", prefix, err)
			stats.Errors++
			continue
		}
		if err := p.saveEnrichment(r.PlaceID, result); err != nil {
			log.Printf("%s -> save failed: %v", prefix, err)
			stats.Errors++
			continue
		}
		if err := p.SM.Advance(r.PlaceID, models.StatusEnriched); err != nil {
			log.Printf("%s -> status advance failed: %v", prefix, err)
			stats.Errors++
			continue
		}
		stats.OK++
		stats.APICalls++
	}
	return stats, nil
}

// countTodayEnrichments counts enrichments completed this calendar day.
func (p *Pipeline) countTodayEnrichments() (int, error) {
	now := p.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var n int64
	err := p.DB.Model(&models.Enrichment{}).
		Where("enriched_at >= ?", midnight).
		Count(&n).Error
	return int(n), err
}

// pendingEnrichments returns qualified new restaurants without a cached
// enrichment, best-rated first.
func (p *Pipeline) pendingEnrichments(limit int) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	sub := p.DB.Model(&models.Enrichment{}).Select("place_id")
	q := p.DB.Where("pipeline_status = ?", models.StatusNew).
		Where("rating >= ? AND rating_count >= ?", p.Cfg.MinRating, p.Cfg.MinRatingCount).
		Where("place_id NOT IN (?)", sub).
		Order("rating DESC, rating_count DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// saveEnrichment writes all enrichment fields in one transaction so a row
// is never partially committed.
func (p *Pipeline) saveEnrichment(placeID string, result *providers.EnrichmentResult) error {
	e := models.Enrichment{
		PlaceID:        placeID,
		FamilyScore:    result.Family,
		DateScore:      result.Date,
		FriendsScore:   result.Friends,
		SoloScore:      result.Solo,
		RelaxedScore:   result.Relaxed,
		PartyScore:     result.Party,
		SpecialScore:   result.Special,
		FoodieScore:    result.Foodie,
		LingeringScore: result.Lingering,
		UniqueScore:    result.Unique,
		DresscodeScore: result.Dresscode,
		SummaryDE:      result.SummaryDE,
		MustOrder:      result.MustOrder,
		Vibe:           result.Vibe,
		Model:          result.Model,
		RawResponse:    string(result.Raw),
		EnrichedAt:     p.now(),
	}
	return p.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "place_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"family_score", "date_score", "friends_score", "solo_score",
				"relaxed_score", "party_score", "special_score", "foodie_score",
				"lingering_score", "unique_score", "dresscode_score",
				"summary_de", "must_order", "vibe", "model", "raw_response", "enriched_at",
			}),
		}).Create(&e).Error
	})
}
