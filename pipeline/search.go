package pipeline

import (
	"context"
	"log"
	"sort"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/providers"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// runSearch executes every due (term × location) query against the maps
// search capability, caches the raw response and upserts each returned
// place. Query bookkeeping is updated even on provider error so a broken
// query cannot cause a tight retry loop.
func (p *Pipeline) runSearch(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	if err := p.seedQueries(); err != nil {
		return stats, err
	}

	queries, err := p.dueQueries(opts.ForceSearch)
	if err != nil {
		return stats, err
	}
	if len(queries) == 0 {
		log.Printf("[search] all queries fresh, nothing to do")
		return stats, nil
	}
	if opts.Limit > 0 && len(queries) > opts.Limit {
		queries = queries[:opts.Limit]
	}
	total := len(queries)
	log.Printf("[search] %d queries due", total)

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		prefix := logPrefix(i+1, total)

		var cached models.SearchCache
		haveCache := p.DB.Where("query = ? AND location = ? AND search_type = ?",
			q.Term, q.Location, "maps").First(&cached).Error == nil

		var resp *providers.SearchResponse
		if haveCache && !opts.ForceSearch {
			log.Printf("%s CACHED   %q in %q", prefix, q.Term, q.Location)
			stats.Cached++
			resp, err = providers.ParseSearchResponse([]byte(cached.Response))
			if err != nil {
				log.Printf("%s -> cached response unreadable: %v", prefix, err)
				stats.Errors++
				continue
			}
		} else {
			if opts.DryRun {
				log.Printf("%s WOULD CALL %q in %q", prefix, q.Term, q.Location)
				continue
			}
			log.Printf("%s CALLING  %q in %q", prefix, q.Term, q.Location)
			if err := p.pace(ctx); err != nil {
				return stats, err
			}
			resp, err = p.Search.SearchPlaces(ctx, q.Term, q.Location)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				log.Printf("%s -> search failed: %v", prefix, err)
				stats.Errors++
				p.markQuery(q, 0, "error")
				continue
			}
			stats.APICalls++
			cached, err = p.saveSearchCache(q.Term, q.Location, resp.Raw)
			if err != nil {
				log.Printf("%s -> cache save failed: %v", prefix, err)
				stats.Errors++
				p.markQuery(q, 0, "error")
				continue
			}
		}

		saved := 0
		for pos, place := range resp.Places {
			if place.Identifier() == "" {
				log.Printf("%s -> skipping place without id: %q", prefix, place.Title)
				continue
			}
			if opts.DryRun {
				continue
			}
			restaurantID, err := p.upsertRestaurant(&place)
			if err != nil {
				log.Printf("%s -> error saving %q: %v", prefix, place.Title, err)
				stats.Errors++
				continue
			}
			if cached.ID != 0 {
				p.linkSearchResult(cached.ID, restaurantID, pos+1)
			}
			// Never downgrades a restaurant already further along.
			if err := p.SM.Advance(place.Identifier(), models.StatusNew); err != nil {
				log.Printf("%s -> status advance failed for %s: %v", prefix, place.Identifier(), err)
				stats.Errors++
				continue
			}
			saved++
			stats.OK++
		}
		log.Printf("%s -> %d places, %d saved", prefix, len(resp.Places), saved)

		if !opts.DryRun {
			p.markQuery(q, saved, "ok")
		}
	}
	return stats, nil
}

// seedQueries upserts the configured term × location cross-product.
func (p *Pipeline) seedQueries() error {
	for _, loc := range p.Cfg.Locations {
		for _, term := range p.Cfg.SearchTerms {
			q := models.SearchQuery{Term: term, Location: loc}
			if err := p.DB.Where("term = ? AND location = ?", term, loc).
				FirstOrCreate(&q).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// dueQueries returns the queries to run, never-run first, then oldest.
func (p *Pipeline) dueQueries(force bool) ([]models.SearchQuery, error) {
	var all []models.SearchQuery
	if err := p.DB.Find(&all).Error; err != nil {
		return nil, err
	}
	now := p.now()
	ttl := p.Cfg.SearchTTL()

	var due []models.SearchQuery
	for _, q := range all {
		if force || q.Due(now, ttl) {
			due = append(due, q)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].LastRunAt, due[j].LastRunAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return due, nil
}

func (p *Pipeline) markQuery(q models.SearchQuery, resultCount int, status string) {
	now := p.now()
	err := p.DB.Model(&models.SearchQuery{}).
		Where("term = ? AND location = ?", q.Term, q.Location).
		Updates(map[string]interface{}{
			"last_run_at":  now,
			"result_count": resultCount,
			"status":       status,
		}).Error
	if err != nil {
		log.Printf("[search] mark query %q/%q failed: %v", q.Term, q.Location, err)
	}
}

func (p *Pipeline) saveSearchCache(term, location string, raw []byte) (models.SearchCache, error) {
	entry := models.SearchCache{
		Query:      term,
		Location:   location,
		SearchType: "maps",
		Response:   string(raw),
	}
	err := p.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "query"}, {Name: "location"}, {Name: "search_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return entry, err
	}
	if entry.ID == 0 {
		// Upsert over an existing row does not report the id back.
		p.DB.Where("query = ? AND location = ? AND search_type = ?", term, location, "maps").
			First(&entry)
	}
	return entry, nil
}

// upsertRestaurant inserts or refreshes a restaurant from a search result.
// Lifecycle fields (pipeline_status, is_active, open_slots, last_verified_at)
// are owned by other stages and left untouched on update.
func (p *Pipeline) upsertRestaurant(place *providers.Place) (uint, error) {
	r := models.Restaurant{
		PlaceID:      place.Identifier(),
		DataCID:      place.CID,
		Name:         place.Title,
		Address:      place.Address,
		Latitude:     place.Latitude,
		Longitude:    place.Longitude,
		Rating:       place.Rating,
		RatingCount:  place.RatingCount,
		PriceLevel:   place.PriceLevel,
		Categories:   models.StringList(place.Categories),
		Phone:        place.Phone,
		Website:      place.Website,
		ThumbnailURL: place.ThumbnailURL,
		RawData:      string(place.Raw),
		IsActive:     true,
	}
	err := p.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "place_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"data_cid", "name", "address", "latitude", "longitude",
			"rating", "rating_count", "price_level", "categories",
			"phone", "website", "thumbnail_url", "raw_data", "updated_at",
		}),
	}).Create(&r).Error
	if err != nil {
		return 0, err
	}
	if r.ID == 0 {
		var existing models.Restaurant
		if err := p.DB.Select("id").Where("place_id = ?", r.PlaceID).First(&existing).Error; err != nil {
			return 0, err
		}
		r.ID = existing.ID
	}
	return r.ID, nil
}

func (p *Pipeline) linkSearchResult(cacheID, restaurantID uint, position int) {
	link := models.SearchResult{CacheID: cacheID, RestaurantID: restaurantID, Position: position}
	err := p.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	if err != nil && err != gorm.ErrDuplicatedKey {
		log.Printf("[search] link result cache=%d restaurant=%d: %v", cacheID, restaurantID, err)
	}
}
