package pipeline

import (
	"context"
	"log"

	"github.com/moritzg809/eateateat/models"
)

// runQualify is a pure re-evaluation pass against the quality thresholds:
// below-threshold new restaurants are disqualified, and previously
// disqualified ones that now pass are moved back to new. No external calls.
func (p *Pipeline) runQualify(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats
	minRating, minCount := p.Cfg.MinRating, p.Cfg.MinRatingCount

	var below []models.Restaurant
	err := p.DB.Where("pipeline_status = ?", models.StatusNew).
		Where("rating < ? OR rating_count < ?", minRating, minCount).
		Find(&below).Error
	if err != nil {
		return stats, err
	}
	log.Printf("[qualify] %d restaurants below threshold", len(below))

	for _, r := range below {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if opts.DryRun {
			log.Printf("[qualify] WOULD disqualify: %s (%.1f, %d reviews)", r.Name, r.Rating, r.RatingCount)
			continue
		}
		if err := p.SM.Advance(r.PlaceID, models.StatusDisqualified); err != nil {
			log.Printf("[qualify] disqualify %s failed: %v", r.PlaceID, err)
			stats.Errors++
			continue
		}
		stats.Disqualified++
	}

	var recovered []models.Restaurant
	err = p.DB.Where("pipeline_status = ?", models.StatusDisqualified).
		Where("rating >= ? AND rating_count >= ?", minRating, minCount).
		Find(&recovered).Error
	if err != nil {
		return stats, err
	}

	for _, r := range recovered {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if opts.DryRun {
			log.Printf("[qualify] WOULD re-qualify: %s (%.1f, %d reviews)", r.Name, r.Rating, r.RatingCount)
			continue
		}
		if err := p.SM.Advance(r.PlaceID, models.StatusNew); err != nil {
			log.Printf("[qualify] re-qualify %s failed: %v", r.PlaceID, err)
			stats.Errors++
			continue
		}
		stats.Requalified++
	}

	if len(recovered) > 0 {
		log.Printf("[qualify] %d previously disqualified restaurants qualify again", len(recovered))
	}
	return stats, nil
}
