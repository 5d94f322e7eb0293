package pipeline

import (
	"context"
	"log"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/providers"

	"gorm.io/gorm/clause"
)

// runDetails fetches categorized detail tags for complete restaurants that
// do not have them yet (pay once per place_id). A closure flag in the
// response forces the record to inactive immediately.
func (p *Pipeline) runDetails(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	rows, err := p.pendingDetails(opts.Limit)
	if err != nil {
		return stats, err
	}
	total := len(rows)
	log.Printf("[details] %d restaurants pending", total)

	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		prefix := logPrefix(i+1, total)

		if opts.DryRun {
			log.Printf("%s WOULD FETCH %s", prefix, r.Name)
			continue
		}
		log.Printf("%s FETCH %s", prefix, r.Name)
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
				log.Printf("%s -> force inactive failed: %v", prefix, err)
				stats.Errors++
				continue
			}
			log.Printf("%s -> CLOSED, marked inactive", prefix)
			stats.Closed++
			continue
		}
		if len(details.Tags) > 0 {
			stats.OK++
		} else {
			log.Printf("%s -> no extensions data", prefix)
			stats.Empty++
		}
	}
	return stats, nil
}

// pendingDetails returns complete restaurants with a provider CID and no
// details row yet.
func (p *Pipeline) pendingDetails(limit int) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	sub := p.DB.Model(&models.PlaceDetails{}).Select("place_id")
	q := p.DB.Where("pipeline_status = ?", models.StatusComplete).
		Where("data_cid <> ''").
		Where("place_id NOT IN (?)", sub).
		Order("rating DESC, rating_count DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (p *Pipeline) saveDetails(placeID string, details *providers.PlaceDetails) error {
	d := models.PlaceDetails{
		PlaceID:        placeID,
		Highlights:     models.StringList(details.Tags["highlights"]),
		PopularFor:     models.StringList(details.Tags["popular_for"]),
		Offerings:      models.StringList(details.Tags["offerings"]),
		Atmosphere:     models.StringList(details.Tags["atmosphere"]),
		Crowd:          models.StringList(details.Tags["crowd"]),
		Planning:       models.StringList(details.Tags["planning"]),
		Payments:       models.StringList(details.Tags["payments"]),
		Accessibility:  models.StringList(details.Tags["accessibility"]),
		Children:       models.StringList(details.Tags["children"]),
		Parking:        models.StringList(details.Tags["parking"]),
		DiningOptions:  models.StringList(details.Tags["dining_options"]),
		Amenities:      models.StringList(details.Tags["amenities"]),
		ServiceOptions: string(details.ServiceOptions),
		RawExtensions:  string(details.RawExtensions),
		RawResponse:    string(details.Raw),
		FetchedAt:      p.now(),
	}
	return p.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "place_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"highlights", "popular_for", "offerings", "atmosphere", "crowd",
			"planning", "payments", "accessibility", "children", "parking",
			"dining_options", "amenities", "service_options",
			"raw_extensions", "raw_response", "fetched_at",
		}),
	}).Create(&d).Error
}
