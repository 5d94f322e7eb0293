package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/providers"
)

// runVerify re-checks complete, active restaurants whose last verification
// is missing or older than the verify TTL. Closure forces the record to
// inactive, a failed quality re-check forces it to disqualified, otherwise
// the verification timestamp is refreshed.
func (p *Pipeline) runVerify(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	ttl := p.Cfg.VerifyTTL()
	if opts.VerifyDays > 0 {
		ttl = time.Duration(opts.VerifyDays) * 24 * time.Hour
	}
	cutoff := p.now().Add(-ttl)

	var rows []models.Restaurant
	q := p.DB.Where("pipeline_status = ?", models.StatusComplete).
		Where("is_active = ?", true).
		Where("last_verified_at IS NULL OR last_verified_at < ?", cutoff).
		Order("last_verified_at ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return stats, err
	}
	total := len(rows)
	if total == 0 {
		log.Printf("[verify] nothing to verify")
		return stats, nil
	}
	log.Printf("[verify] %d restaurants due for re-verification", total)

	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		prefix := logPrefix(i+1, total)

		if opts.DryRun {
			log.Printf("%s WOULD VERIFY %s", prefix, r.Name)
			continue
		}
		log.Printf("%s VERIFY %s", prefix, r.Name)
		if err := p.pace(ctx); err != nil {
			return stats, err
		}
		details, err := p.Details.FetchDetails(ctx, r.DataCID)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Printf("%s -> fetch failed: %v", prefix, err)
			stats.Errors++
			continue
		}
		stats.APICalls++
		if err := p.saveDetails(r.PlaceID, details); err != nil {
			log.Printf("%s -> save failed: %v", prefix, err)
			stats.Errors++
			continue
		}

		if providers.IsClosed(details) {
			if err := p.SM.Force(r.PlaceID, models.StatusInactive); err != nil {
				stats.Errors++
				continue
			}
			log.Printf("%s -> CLOSED, marked inactive", prefix)
			stats.Closed++
			continue
		}

		// Quality re-check against the current stored rating.
		var fresh models.Restaurant
		if err := p.DB.Where("place_id = ?", r.PlaceID).First(&fresh).Error; err != nil {
			stats.Errors++
			continue
		}
		if !fresh.MeetsThresholds(p.Cfg.MinRating, p.Cfg.MinRatingCount) {
			if err := p.SM.Force(r.PlaceID, models.StatusDisqualified); err != nil {
				stats.Errors++
				continue
			}
			log.Printf("%s -> below threshold (%.1f, %d reviews), disqualified",
				prefix, fresh.Rating, fresh.RatingCount)
			stats.Disqualified++
			continue
		}

		if err := p.DB.Model(&models.Restaurant{}).
			Where("place_id = ?", r.PlaceID).
			Update("last_verified_at", p.now()).Error; err != nil {
			stats.Errors++
			continue
		}
		stats.OK++
	}

	log.Printf("[verify] ok=%d closed=%d disqualified=%d errors=%d",
		stats.OK, stats.Closed, stats.Disqualified, stats.Errors)
	return stats, nil
}
