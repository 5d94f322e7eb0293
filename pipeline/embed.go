package pipeline

import (
	"context"
	"log"

	"github.com/moritzg809/eateateat/models"

	"gorm.io/gorm/clause"
)

// embedBatchSize is the number of texts per embedding API call.
const embedBatchSize = 50

// runEmbed generates text embeddings for enriched restaurants that have
// none yet, and precomputes their weekly 2-hour open slots. Not part of the
// default stage list; run with -stages embed.
func (p *Pipeline) runEmbed(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	rows, err := p.pendingEmbeddings(opts.Limit)
	if err != nil {
		return stats, err
	}
	total := len(rows)
	log.Printf("[embed] %d restaurants pending", total)

	for start := 0; start < total; start += embedBatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := start + embedBatchSize
		if end > total {
			end = total
		}
		batch := rows[start:end]

		var texts []string
		var valid []models.Restaurant
		for _, r := range batch {
			text := p.textContentFor(&r)
			if text == "" {
				log.Printf("[embed] SKIP (no text content): %s", r.Name)
				stats.Empty++
				continue
			}
			if opts.DryRun {
				log.Printf("[embed] WOULD EMBED %s (chars=%d)", r.Name, len(text))
				continue
			}
			texts = append(texts, text)
			valid = append(valid, r)
		}
		if len(texts) == 0 {
			continue
		}

		log.Printf("[embed] batch %d-%d / %d", start+1, start+len(texts), total)
		if err := p.pace(ctx); err != nil {
			return stats, err
		}
		vectors, err := p.Embedder.EmbedTexts(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Printf("[embed] batch failed: %v", err)
			stats.Errors += len(texts)
			continue
		}
		stats.APICalls++

		for i, r := range valid {
			slots := ComputeOpenSlots(parseRawPlace(r.RawData).OpeningHours)
			if err := p.saveEmbedding(r.PlaceID, texts[i], vectors[i], slots); err != nil {
				log.Printf("[embed] save %s failed: %v", r.PlaceID, err)
				stats.Errors++
				continue
			}
			stats.OK++
		}
	}
	return stats, nil
}

// pendingEmbeddings returns enriched-or-better restaurants without an
// embedding row, best-rated first.
func (p *Pipeline) pendingEmbeddings(limit int) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	sub := p.DB.Model(&models.Embedding{}).Select("place_id")
	q := p.DB.Where("pipeline_status IN ?", []models.PipelineStatus{models.StatusEnriched, models.StatusComplete}).
		Where("rating >= ? AND rating_count >= ?", p.Cfg.MinRating, p.Cfg.MinRatingCount).
		Where("place_id NOT IN (?)", sub).
		Order("rating DESC, rating_count DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (p *Pipeline) textContentFor(r *models.Restaurant) string {
	var d *models.PlaceDetails
	var details models.PlaceDetails
	if err := p.DB.Where("place_id = ?", r.PlaceID).First(&details).Error; err == nil {
		d = &details
	}
	var e *models.Enrichment
	var enrichment models.Enrichment
	if err := p.DB.Where("place_id = ?", r.PlaceID).First(&enrichment).Error; err == nil {
		e = &enrichment
	}
	return BuildTextContent(r, d, e)
}

func (p *Pipeline) saveEmbedding(placeID, text string, vector []float64, slots []string) error {
	e := models.Embedding{
		PlaceID:     placeID,
		TextContent: text,
		Vector:      models.FloatVector(vector),
		Model:       "gemini-embedding-001",
		EmbeddedAt:  p.now(),
	}
	if err := p.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "place_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"text_content", "vector", "model", "embedded_at",
		}),
	}).Create(&e).Error; err != nil {
		return err
	}
	// Open slots are refreshed even on re-embed.
	return p.DB.Model(&models.Restaurant{}).
		Where("place_id = ?", placeID).
		Update("open_slots", models.StringList(slots)).Error
}
