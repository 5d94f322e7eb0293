package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/pipeline"

	"github.com/gin-gonic/gin"
)

// PipelineHealth returns the aggregate pipeline dashboard data: the status
// funnel, today's enrichment quota usage, details coverage, per-query
// freshness and the verification backlog.
func (a *API) PipelineHealth(c *gin.Context) {
	now := time.Now()

	// Status funnel
	type statusRow struct {
		PipelineStatus models.PipelineStatus
		N              int
	}
	var statusRows []statusRow
	a.DB.Model(&models.Restaurant{}).
		Select("pipeline_status, count(*) AS n").
		Group("pipeline_status").
		Scan(&statusRows)
	statusCounts := map[models.PipelineStatus]int{}
	total := 0
	for _, row := range statusRows {
		statusCounts[row.PipelineStatus] = row.N
		total += row.N
	}

	// Daily enrichment gauge
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var todayEnrichments int64
	a.DB.Model(&models.Enrichment{}).Where("enriched_at >= ?", midnight).Count(&todayEnrichments)

	// Details coverage for complete restaurants
	var withDetails, withoutDetails int64
	detailsSub := a.DB.Model(&models.PlaceDetails{}).Select("place_id")
	a.DB.Model(&models.Restaurant{}).
		Where("pipeline_status = ?", models.StatusComplete).
		Where("place_id IN (?)", detailsSub).
		Count(&withDetails)
	a.DB.Model(&models.Restaurant{}).
		Where("pipeline_status = ?", models.StatusComplete).
		Where("place_id NOT IN (?)", detailsSub).
		Count(&withoutDetails)

	// Per-query freshness
	var queries []models.SearchQuery
	a.DB.Order("last_run_at ASC").Find(&queries)
	searchTTL := a.Cfg.SearchTTL()
	queryRows := make([]gin.H, 0, len(queries))
	overdue := 0
	var lastRun *time.Time
	for _, q := range queries {
		freshness := "ok"
		var daysUntilDue *int
		switch {
		case q.LastRunAt == nil:
			freshness = "never"
		case now.Sub(*q.LastRunAt) > searchTTL:
			freshness = "overdue"
		default:
			d := int(q.LastRunAt.Add(searchTTL).Sub(now).Hours() / 24)
			daysUntilDue = &d
		}
		if freshness != "ok" {
			overdue++
		}
		if q.LastRunAt != nil && (lastRun == nil || q.LastRunAt.After(*lastRun)) {
			lastRun = q.LastRunAt
		}
		queryRows = append(queryRows, gin.H{
			"term":           q.Term,
			"location":       q.Location,
			"last_run_at":    q.LastRunAt,
			"result_count":   q.ResultCount,
			"status":         q.Status,
			"freshness":      freshness,
			"days_until_due": daysUntilDue,
		})
	}

	// Verification backlog
	verifyCutoff := now.Add(-a.Cfg.VerifyTTL())
	var verifyDue int64
	a.DB.Model(&models.Restaurant{}).
		Where("pipeline_status = ?", models.StatusComplete).
		Where("is_active = ?", true).
		Where("last_verified_at IS NULL OR last_verified_at < ?", verifyCutoff).
		Count(&verifyDue)

	// Recently deactivated
	var inactive []models.Restaurant
	a.DB.Where("is_active = ? OR pipeline_status = ?", false, models.StatusInactive).
		Order("last_verified_at DESC").
		Limit(20).
		Find(&inactive)

	c.JSON(http.StatusOK, gin.H{
		"total_restaurants":     total,
		"status_counts":         statusCounts,
		"today_enrichments":     todayEnrichments,
		"daily_limit":           a.Cfg.DailyEnrichLimit,
		"details_coverage":      gin.H{"with_details": withDetails, "without_details": withoutDetails},
		"search_queries":        queryRows,
		"queries_overdue":       overdue,
		"queries_total":         len(queries),
		"last_run_at":           lastRun,
		"verify_due_count":      verifyDue,
		"inactive_restaurants":  inactive,
	})
}

type forceStatusRequest struct {
	Status models.PipelineStatus `json:"status" binding:"required"`
}

// ForceStatus writes a pipeline status unconditionally — the admin
// counterpart of the forced transitions the verify stage performs.
func (a *API) ForceStatus(c *gin.Context) {
	var req forceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown pipeline status: " + string(req.Status)})
		return
	}
	placeID := c.Param("place_id")
	if err := a.Pipe.SM.Force(placeID, req.Status); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	a.Rec.Invalidate()
	c.JSON(http.StatusOK, gin.H{"place_id": placeID, "status": req.Status})
}

type runPipelineRequest struct {
	Stages      []string `json:"stages"`
	DryRun      bool     `json:"dry_run"`
	ForceSearch bool     `json:"force_search"`
	Limit       int      `json:"limit" binding:"omitempty,min=0"`
	DailyLimit  int      `json:"daily_limit" binding:"omitempty,min=0"`
	VerifyDays  int      `json:"verify_days" binding:"omitempty,min=0"`
}

// RunPipeline launches a pipeline run in the background. Only one run may
// be in flight at a time.
func (a *API) RunPipeline(c *gin.Context) {
	if a.Pipe == nil || a.Pipe.Search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline providers not configured (missing API keys)"})
		return
	}
	var req runPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !a.pipelineMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "A pipeline run is already in progress"})
		return
	}
	opts := pipeline.Options{
		Stages:      req.Stages,
		DryRun:      req.DryRun,
		ForceSearch: req.ForceSearch,
		Limit:       req.Limit,
		DailyLimit:  req.DailyLimit,
		VerifyDays:  req.VerifyDays,
	}
	go func() {
		defer a.pipelineMu.Unlock()
		if _, err := a.Pipe.Run(context.Background(), opts); err != nil {
			log.Printf("admin-triggered pipeline run failed: %v", err)
		}
		a.Rec.Invalidate()
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "Pipeline run started", "options": opts})
}
