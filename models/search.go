package models

import "time"

// SearchQuery is one (term, location) combination from the configured
// cross-product. It becomes due again once its last run is older than the
// search TTL.
type SearchQuery struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Term        string     `json:"term" gorm:"not null;uniqueIndex:idx_term_location"`
	Location    string     `json:"location" gorm:"not null;uniqueIndex:idx_term_location"`
	LastRunAt   *time.Time `json:"last_run_at"`
	ResultCount int        `json:"result_count"`
	Status      string     `json:"status"` // "", "ok" or "error"
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Due reports whether the query should be re-executed.
func (q *SearchQuery) Due(now time.Time, ttl time.Duration) bool {
	return q.LastRunAt == nil || now.Sub(*q.LastRunAt) > ttl
}

// SearchCache stores the raw provider response for one search call,
// keyed by (query, location, type). At most one external call per key
// unless a run is forced.
type SearchCache struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Query      string    `json:"query" gorm:"not null;uniqueIndex:idx_query_loc_type"`
	Location   string    `json:"location" gorm:"not null;uniqueIndex:idx_query_loc_type"`
	SearchType string    `json:"search_type" gorm:"not null;uniqueIndex:idx_query_loc_type"`
	Response   string    `json:"-" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SearchResult records that a restaurant appeared at a rank position in a
// cached search response.
type SearchResult struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	CacheID      uint `json:"cache_id" gorm:"not null;uniqueIndex:idx_cache_restaurant"`
	RestaurantID uint `json:"restaurant_id" gorm:"not null;uniqueIndex:idx_cache_restaurant"`
	Position     int  `json:"position" gorm:"not null"`
}
