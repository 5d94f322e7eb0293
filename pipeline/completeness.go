package pipeline

import (
	"context"
	"log"

	"github.com/moritzg809/eateateat/models"
)

// completenessScores is the minimum number of set profile scores for a
// restaurant to count as complete.
const completenessScores = 5

// runCompleteness promotes enriched restaurants whose enrichment has enough
// substance: non-empty vibe, non-empty summary and at least five of the
// eleven profile scores. Incomplete ones stay enriched for a later retry.
func (p *Pipeline) runCompleteness(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	var rows []models.Restaurant
	if err := p.DB.Where("pipeline_status = ?", models.StatusEnriched).Find(&rows).Error; err != nil {
		return stats, err
	}
	log.Printf("[completeness] checking %d enriched restaurants", len(rows))

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		var e models.Enrichment
		if err := p.DB.Where("place_id = ?", r.PlaceID).First(&e).Error; err != nil {
			log.Printf("[completeness] %s has no enrichment row: %v", r.PlaceID, err)
			stats.Errors++
			continue
		}
		if !isComplete(&e) {
			if opts.DryRun {
				log.Printf("[completeness] INCOMPLETE: %s (vibe=%t summary=%t scores=%d)",
					r.Name, e.Vibe != "", e.SummaryDE != "", e.ScoreCount())
			}
			stats.Empty++
			continue
		}
		if opts.DryRun {
			log.Printf("[completeness] WOULD promote: %s", r.Name)
			continue
		}
		if err := p.SM.Advance(r.PlaceID, models.StatusComplete); err != nil {
			log.Printf("[completeness] promote %s failed: %v", r.PlaceID, err)
			stats.Errors++
			continue
		}
		stats.OK++
	}

	log.Printf("[completeness] promoted %d, left %d incomplete", stats.OK, stats.Empty)
	return stats, nil
}

func isComplete(e *models.Enrichment) bool {
	return e.Vibe != "" && e.SummaryDE != "" && e.ScoreCount() >= completenessScores
}
