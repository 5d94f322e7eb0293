package models

import "time"

// Restaurant is one physical place as returned by the maps search provider,
// keyed by its stable external place_id.
type Restaurant struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	PlaceID        string         `json:"place_id" gorm:"uniqueIndex;not null"`
	DataCID        string         `json:"data_cid" gorm:"column:data_cid"`
	Name           string         `json:"name" gorm:"not null"`
	Address        string         `json:"address"`
	Latitude       *float64       `json:"latitude"`
	Longitude      *float64       `json:"longitude"`
	Rating         float64        `json:"rating"`
	RatingCount    int            `json:"rating_count"`
	PriceLevel     string         `json:"price_level"` // e.g. "€€"
	Categories     StringList     `json:"categories" gorm:"type:text"`
	Phone          string         `json:"phone"`
	Website        string         `json:"website"`
	ThumbnailURL   string         `json:"thumbnail_url"`
	OpenSlots      StringList     `json:"open_slots" gorm:"type:text"` // 2-hour slots, e.g. "Mo12"
	RawData        string         `json:"-" gorm:"type:text"` // raw provider payload (JSON)
	IsActive       bool           `json:"is_active" gorm:"default:true"`
	PipelineStatus PipelineStatus `json:"pipeline_status" gorm:"not null;default:'new';index"`
	LastVerifiedAt *time.Time     `json:"last_verified_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MeetsThresholds reports whether the restaurant passes the quality gate.
func (r *Restaurant) MeetsThresholds(minRating float64, minRatingCount int) bool {
	return r.Rating >= minRating && r.RatingCount >= minRatingCount
}

// PriceTier returns the ordinal price tier (count of currency glyphs), 0 if unknown.
func (r *Restaurant) PriceTier() int {
	n := 0
	for range r.PriceLevel {
		n++
	}
	return n
}
