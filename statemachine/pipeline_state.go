package statemachine

import (
	"fmt"
	"time"

	"github.com/moritzg809/eateateat/models"

	"gorm.io/gorm"
)

// Transition defines a lifecycle state change and whether it needs a force
type Transition struct {
	From   models.PipelineStatus `json:"from"`
	To     models.PipelineStatus `json:"to"`
	Forced bool                  `json:"forced"`
	Reason string                `json:"reason"`
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	// Quality re-check moves records between new and disqualified in both
	// directions — the only reciprocal pair on the normal path.
	{From: models.StatusNew, To: models.StatusDisqualified, Reason: "quality check failed"},
	{From: models.StatusDisqualified, To: models.StatusNew, Reason: "quality check passes again"},
	// Successful enrichment
	{From: models.StatusNew, To: models.StatusEnriched, Reason: "enrichment stored"},
	// Completeness check passed
	{From: models.StatusEnriched, To: models.StatusComplete, Reason: "completeness check passed"},
	// Forced transitions from periodic verification
	{From: models.StatusComplete, To: models.StatusInactive, Forced: true, Reason: "closure detected"},
	{From: models.StatusComplete, To: models.StatusDisqualified, Forced: true, Reason: "re-verification failed quality"},
	// Closure can be detected from any state
	{From: models.StatusNew, To: models.StatusInactive, Forced: true, Reason: "closure detected"},
	{From: models.StatusDisqualified, To: models.StatusInactive, Forced: true, Reason: "closure detected"},
	{From: models.StatusEnriched, To: models.StatusInactive, Forced: true, Reason: "closure detected"},
}

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.PipelineStatus) []models.PipelineStatus {
	var nexts []models.PipelineStatus
	seen := map[models.PipelineStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// AllTransitions returns the full state machine for documentation
func AllTransitions() []Transition {
	return validTransitions
}

// CanAdvance reports whether a non-forced update from one status to another
// is applied. Re-asserting the same status is allowed (idempotent); otherwise
// the priority must not decrease, except for the disqualified → new re-check.
func CanAdvance(from, to models.PipelineStatus) bool {
	if from == to {
		return true
	}
	if from == models.StatusDisqualified && to == models.StatusNew {
		return true
	}
	return to.Priority() >= from.Priority()
}

// Machine applies lifecycle updates to restaurant records.
type Machine struct {
	DB  *gorm.DB
	Now func() time.Time
}

func New(db *gorm.DB) *Machine {
	return &Machine{DB: db, Now: time.Now}
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Advance applies the monotonic-transition rule: the update is a no-op (not
// an error) when the current status already has higher priority.
func (m *Machine) Advance(placeID string, next models.PipelineStatus) error {
	if !next.Valid() {
		return fmt.Errorf("statemachine: unknown status %q", next)
	}
	var r models.Restaurant
	if err := m.DB.Where("place_id = ?", placeID).First(&r).Error; err != nil {
		return fmt.Errorf("statemachine: load %s: %w", placeID, err)
	}
	if r.PipelineStatus == next {
		return nil
	}
	if !CanAdvance(r.PipelineStatus, next) {
		return nil
	}
	return m.apply(&r, next)
}

// Force writes the status unconditionally, bypassing the monotonic rule.
// Used when the provider confirms closure or re-verification fails quality.
func (m *Machine) Force(placeID string, next models.PipelineStatus) error {
	if !next.Valid() {
		return fmt.Errorf("statemachine: unknown status %q", next)
	}
	var r models.Restaurant
	if err := m.DB.Where("place_id = ?", placeID).First(&r).Error; err != nil {
		return fmt.Errorf("statemachine: load %s: %w", placeID, err)
	}
	return m.apply(&r, next)
}

func (m *Machine) apply(r *models.Restaurant, next models.PipelineStatus) error {
	updates := map[string]interface{}{"pipeline_status": next}
	// last_verified_at is stamped only on entering complete or inactive.
	if next == models.StatusComplete || next == models.StatusInactive {
		updates["last_verified_at"] = m.now()
	}
	if next == models.StatusInactive {
		updates["is_active"] = false
	}
	if err := m.DB.Model(&models.Restaurant{}).
		Where("place_id = ?", r.PlaceID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("statemachine: update %s -> %s: %w", r.PlaceID, next, err)
	}
	return nil
}
