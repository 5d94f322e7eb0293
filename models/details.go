package models

import "time"

// PlaceDetails holds the categorized tag arrays from the place-details
// provider. One row per place_id, fetched at most once unless forced.
type PlaceDetails struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	PlaceID string `json:"place_id" gorm:"uniqueIndex;not null"`

	Highlights    StringList `json:"highlights" gorm:"type:text"`
	PopularFor    StringList `json:"popular_for" gorm:"type:text"`
	Offerings     StringList `json:"offerings" gorm:"type:text"`
	Atmosphere    StringList `json:"atmosphere" gorm:"type:text"`
	Crowd         StringList `json:"crowd" gorm:"type:text"`
	Planning      StringList `json:"planning" gorm:"type:text"`
	Payments      StringList `json:"payments" gorm:"type:text"`
	Accessibility StringList `json:"accessibility" gorm:"type:text"`
	Children      StringList `json:"children" gorm:"type:text"`
	Parking       StringList `json:"parking" gorm:"type:text"`
	DiningOptions StringList `json:"dining_options" gorm:"type:text"`
	Amenities     StringList `json:"amenities" gorm:"type:text"`

	ServiceOptions string    `json:"-" gorm:"type:text"` // raw JSON
	RawExtensions  string    `json:"-" gorm:"type:text"`
	RawResponse    string    `json:"-" gorm:"type:text"`
	FetchedAt      time.Time `json:"fetched_at"`
}
