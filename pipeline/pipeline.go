// Package pipeline sequences the six idempotent stages that move each
// restaurant record through its lifecycle: search, qualify, enrich,
// completeness, details and verify, plus the embed step that feeds the
// recommender. Every stage is safe to re-run from any point.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/moritzg809/eateateat/config"
	"github.com/moritzg809/eateateat/providers"
	"github.com/moritzg809/eateateat/statemachine"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// AllStages lists the default stages in execution order. Embed is opt-in.
var AllStages = []string{"search", "qualify", "enrich", "completeness", "details", "verify"}

// Options are operational controls for one pipeline run.
type Options struct {
	Stages      []string // subset of AllStages plus "embed"; nil means all six
	DryRun      bool     // log intended actions, no external calls or writes
	ForceSearch bool     // bypass the search TTL
	Limit       int      // per-stage item cap, 0 = unlimited
	DailyLimit  int      // enrichment quota override, 0 = config default
	VerifyDays  int      // verify TTL override in days, 0 = config default
}

// Stats aggregates per-stage outcome counts. Per-record failures are
// counted here and never abort the stage.
type Stats struct {
	OK           int
	Empty        int
	Cached       int
	APICalls     int
	Closed       int
	Disqualified int
	Requalified  int
	Errors       int
}

func (s Stats) String() string {
	return fmt.Sprintf("ok=%d empty=%d cached=%d api_calls=%d closed=%d disqualified=%d requalified=%d errors=%d",
		s.OK, s.Empty, s.Cached, s.APICalls, s.Closed, s.Disqualified, s.Requalified, s.Errors)
}

func logPrefix(i, total int) string {
	return fmt.Sprintf("[%3d/%d]", i, total)
}

// Pipeline drives the stages over the restaurant collection. The store is
// the single source of truth; the pipeline holds no record state between
// stages.
type Pipeline struct {
	DB       *gorm.DB
	SM       *statemachine.Machine
	Search   providers.SearchClient
	Details  providers.DetailsClient
	Enricher providers.Enricher
	Embedder providers.Embedder
	Cfg      *config.Config

	// Limiter paces external calls; nil disables pacing (tests).
	Limiter *rate.Limiter
	Now     func() time.Time
}

func New(db *gorm.DB, cfg *config.Config) *Pipeline {
	return &Pipeline{
		DB:      db,
		SM:      statemachine.New(db),
		Cfg:     cfg,
		Limiter: rate.NewLimiter(rate.Every(cfg.Pace()), 1),
		Now:     time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// pace blocks until the next external call is allowed or ctx is cancelled.
func (p *Pipeline) pace(ctx context.Context) error {
	if p.Limiter == nil {
		return nil
	}
	return p.Limiter.Wait(ctx)
}

// Run executes the requested stages sequentially and returns per-stage
// stats. It stops between records on context cancellation; in-flight work
// for a single record completes first.
func (p *Pipeline) Run(ctx context.Context, opts Options) (map[string]Stats, error) {
	stages := opts.Stages
	if len(stages) == 0 {
		stages = AllStages
	}
	runID := uuid.NewString()

	log.Printf("pipeline run %s starting (stages: %v, dry-run: %v)", runID, stages, opts.DryRun)
	results := make(map[string]Stats, len(stages))

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		var (
			stats Stats
			err   error
		)
		switch stage {
		case "search":
			stats, err = p.runSearch(ctx, opts)
		case "qualify":
			stats, err = p.runQualify(ctx, opts)
		case "enrich":
			stats, err = p.runEnrich(ctx, opts)
		case "completeness":
			stats, err = p.runCompleteness(ctx, opts)
		case "details":
			stats, err = p.runDetails(ctx, opts)
		case "verify":
			stats, err = p.runVerify(ctx, opts)
		case "embed":
			stats, err = p.runEmbed(ctx, opts)
		default:
			return results, fmt.Errorf("pipeline: unknown stage %q", stage)
		}
		results[stage] = stats
		if err != nil {
			return results, err
		}
		log.Printf("[%s] done: %s", stage, stats)
	}

	log.Printf("pipeline run %s complete", runID)
	return results, nil
}
