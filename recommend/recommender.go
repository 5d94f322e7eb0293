// Package recommend scores restaurants against each other with a weighted
// composite of embedding similarity, profile-score similarity, opening-slot
// overlap and category/price bonuses, serving ranked top-N lists.
package recommend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/moritzg809/eateateat/models"

	"gorm.io/gorm"
)

const (
	// scoreCutoff filters weak matches from results.
	scoreCutoff = 0.50
	// maxResults caps the requested top-N.
	maxResults = 20
	// defaultResults is used when the caller passes n <= 0.
	defaultResults = 10
)

// ErrNotScoreable is returned when the target restaurant has no profile
// scores and therefore cannot be compared to anything.
var ErrNotScoreable = errors.New("recommend: restaurant has no profile scores")

// Match is one scored recommendation.
type Match struct {
	PlaceID string  `json:"place_id"`
	Score   float64 `json:"score"`
}

type candidate struct {
	placeID   string
	scores    []float64 // normalized 11-dim profile vector, nil if zero norm
	embedding []float64 // normalized text embedding, nil if absent
	slots     map[string]struct{}
	category  string // coarse category, lowercased
	priceTier int
}

// candidateSet is a point-in-time snapshot of all scoreable restaurants.
// It may be served stale for up to the configured TTL; that staleness is a
// deliberate tradeoff for not rebuilding on every request.
type candidateSet struct {
	builtAt time.Time
	list    []candidate // in insertion (query) order — tie-break order
	index   map[string]int
}

// Recommender owns the candidate snapshot explicitly; nothing is cached at
// package level. The clock is injectable so the TTL is testable.
type Recommender struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time

	mu   sync.Mutex
	snap *candidateSet
}

func New(db *gorm.DB, ttl time.Duration) *Recommender {
	return &Recommender{DB: db, TTL: ttl, Now: time.Now}
}

func (r *Recommender) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Invalidate drops the snapshot so the next request rebuilds it.
func (r *Recommender) Invalidate() {
	r.mu.Lock()
	r.snap = nil
	r.mu.Unlock()
}

// Similar returns up to n candidates scoring at least the cutoff against
// the target, best first. The target itself is never included. The result
// is pure with respect to the snapshot — no stored data is mutated.
func (r *Recommender) Similar(placeID string, n int) ([]Match, error) {
	if n <= 0 {
		n = defaultResults
	}
	if n > maxResults {
		n = maxResults
	}

	set, err := r.candidates()
	if err != nil {
		return nil, err
	}
	ti, ok := set.index[placeID]
	if !ok {
		return nil, ErrNotScoreable
	}
	target := set.list[ti]

	matches := make([]Match, 0, n)
	for i := range set.list {
		if i == ti {
			continue
		}
		score := scorePair(&target, &set.list[i])
		if score >= scoreCutoff {
			matches = append(matches, Match{PlaceID: set.list[i].placeID, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// scorePair computes the composite similarity in [0,1]. Embedding mode is
// used when both sides carry an embedding; otherwise the fallback weights
// shift onto the profile scores and the bonuses double.
func scorePair(t, c *candidate) float64 {
	scoresCos := dot(t.scores, c.scores)
	slotJaccard := jaccard(t.slots, c.slots)
	sameType := t.category != "" && t.category == c.category

	var priceBonus float64 // fraction of the full bonus weight
	if t.priceTier > 0 && c.priceTier > 0 {
		diff := t.priceTier - c.priceTier
		if diff < 0 {
			diff = -diff
		}
		switch diff {
		case 0:
			priceBonus = 1.0
		case 1:
			priceBonus = 0.5
		}
	}

	if t.embedding != nil && c.embedding != nil {
		score := 0.55*dot(t.embedding, c.embedding) + 0.20*scoresCos + 0.15*slotJaccard
		if sameType {
			score += 0.05
		}
		score += 0.05 * priceBonus
		return score
	}

	score := 0.60*scoresCos + 0.15*slotJaccard
	if sameType {
		score += 0.10
	}
	score += 0.10 * priceBonus
	return score
}

// candidates returns the cached snapshot, rebuilding it once the TTL has
// passed.
func (r *Recommender) candidates() (*candidateSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if r.snap != nil && now.Sub(r.snap.builtAt) < r.TTL {
		return r.snap, nil
	}
	set, err := r.build(now)
	if err != nil {
		return nil, err
	}
	r.snap = set
	return set, nil
}

// build loads every active restaurant with an enrichment row and
// precomputes its normalized vectors and slot set.
func (r *Recommender) build(now time.Time) (*candidateSet, error) {
	var enrichments []models.Enrichment
	if err := r.DB.Order("id ASC").Find(&enrichments).Error; err != nil {
		return nil, err
	}
	byPlace := make(map[string]*models.Enrichment, len(enrichments))
	for i := range enrichments {
		byPlace[enrichments[i].PlaceID] = &enrichments[i]
	}

	var embeddings []models.Embedding
	if err := r.DB.Find(&embeddings).Error; err != nil {
		return nil, err
	}
	vectors := make(map[string][]float64, len(embeddings))
	for i := range embeddings {
		vectors[embeddings[i].PlaceID] = normalize(embeddings[i].Vector)
	}

	var restaurants []models.Restaurant
	if err := r.DB.Where("is_active = ?", true).Order("id ASC").Find(&restaurants).Error; err != nil {
		return nil, err
	}

	set := &candidateSet{builtAt: now, index: make(map[string]int)}
	for i := range restaurants {
		rest := &restaurants[i]
		e, ok := byPlace[rest.PlaceID]
		if !ok {
			continue // no profile-score vector, cannot be ranked
		}
		slots := make(map[string]struct{}, len(rest.OpenSlots))
		for _, s := range rest.OpenSlots {
			slots[s] = struct{}{}
		}
		category := ""
		if len(rest.Categories) > 0 {
			category = strings.ToLower(rest.Categories[0])
		}
		set.index[rest.PlaceID] = len(set.list)
		set.list = append(set.list, candidate{
			placeID:   rest.PlaceID,
			scores:    normalize(e.ScoreVector()),
			embedding: vectors[rest.PlaceID],
			slots:     slots,
			category:  category,
			priceTier: rest.PriceTier(),
		})
	}
	return set, nil
}
