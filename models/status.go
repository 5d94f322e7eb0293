package models

// PipelineStatus represents the lifecycle stage of a restaurant record
type PipelineStatus string

const (
	StatusNew          PipelineStatus = "new"
	StatusDisqualified PipelineStatus = "disqualified"
	StatusEnriched     PipelineStatus = "enriched"
	StatusComplete     PipelineStatus = "complete"
	StatusInactive     PipelineStatus = "inactive"
)

// statusPriority orders the lifecycle: a normal (non-forced) update never
// moves a record to a lower-priority status.
var statusPriority = map[PipelineStatus]int{
	StatusNew:          0,
	StatusDisqualified: 1,
	StatusEnriched:     2,
	StatusComplete:     3,
	StatusInactive:     4,
}

// Priority returns the ordering rank of a status. Unknown statuses rank -1.
func (s PipelineStatus) Priority() int {
	p, ok := statusPriority[s]
	if !ok {
		return -1
	}
	return p
}

// Valid reports whether s is one of the five defined statuses.
func (s PipelineStatus) Valid() bool {
	_, ok := statusPriority[s]
	return ok
}

// AllStatuses returns the statuses in priority order.
func AllStatuses() []PipelineStatus {
	return []PipelineStatus{
		StatusNew, StatusDisqualified, StatusEnriched, StatusComplete, StatusInactive,
	}
}
