package models

import "time"

// Embedding holds the dense text-embedding vector for a restaurant, plus
// the exact source text it was computed from. One row per place_id.
type Embedding struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	PlaceID     string      `json:"place_id" gorm:"uniqueIndex;not null"`
	TextContent string      `json:"text_content" gorm:"type:text;not null"`
	Vector      FloatVector `json:"-" gorm:"type:text;not null"`
	Model       string      `json:"model" gorm:"not null"`
	EmbeddedAt  time.Time   `json:"embedded_at"`
}
