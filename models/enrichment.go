package models

import "time"

// Enrichment holds the LLM-produced travel-profile scores and descriptive
// text for a restaurant. One row per place_id; a save replaces all fields.
type Enrichment struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	PlaceID string `json:"place_id" gorm:"uniqueIndex;not null"`

	// Profile scores, 1–10 or unset.
	FamilyScore    *int `json:"family_score"`
	DateScore      *int `json:"date_score"`
	FriendsScore   *int `json:"friends_score"`
	SoloScore      *int `json:"solo_score"`
	RelaxedScore   *int `json:"relaxed_score"`
	PartyScore     *int `json:"party_score"`
	SpecialScore   *int `json:"special_score"`
	FoodieScore    *int `json:"foodie_score"`
	LingeringScore *int `json:"lingering_score"`
	UniqueScore    *int `json:"unique_score"`
	DresscodeScore *int `json:"dresscode_score"`

	SummaryDE   string    `json:"summary_de"`
	MustOrder   string    `json:"must_order"`
	Vibe        string    `json:"vibe"`
	Model       string    `json:"model"`
	RawResponse string    `json:"-" gorm:"type:text"`
	EnrichedAt  time.Time `json:"enriched_at"`
}

// ProfileKeys lists the profile dimensions in canonical order.
var ProfileKeys = []string{
	"family", "date", "friends", "solo", "relaxed", "party",
	"special", "foodie", "lingering", "unique", "dresscode",
}

// Scores returns the 11 profile scores in canonical order.
func (e *Enrichment) Scores() []*int {
	return []*int{
		e.FamilyScore, e.DateScore, e.FriendsScore, e.SoloScore,
		e.RelaxedScore, e.PartyScore, e.SpecialScore, e.FoodieScore,
		e.LingeringScore, e.UniqueScore, e.DresscodeScore,
	}
}

// ScoreCount returns how many of the 11 profile scores are set.
func (e *Enrichment) ScoreCount() int {
	n := 0
	for _, s := range e.Scores() {
		if s != nil {
			n++
		}
	}
	return n
}

// ScoreVector returns the 11 scores as floats, unset dimensions as 0.
func (e *Enrichment) ScoreVector() []float64 {
	v := make([]float64, 0, 11)
	for _, s := range e.Scores() {
		if s != nil {
			v = append(v, float64(*s))
		} else {
			v = append(v, 0)
		}
	}
	return v
}
