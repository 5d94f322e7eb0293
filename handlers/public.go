package handlers

import (
	"net/http"
	"strconv"

	"github.com/moritzg809/eateateat/models"
	"github.com/moritzg809/eateateat/statemachine"

	"github.com/gin-gonic/gin"
)

// profileColumns is the closed allow-list mapping profile keys to
// enrichment score columns. User input never reaches the query directly.
var profileColumns = map[string]string{
	"family":    "family_score",
	"date":      "date_score",
	"friends":   "friends_score",
	"solo":      "solo_score",
	"relaxed":   "relaxed_score",
	"party":     "party_score",
	"special":   "special_score",
	"foodie":    "foodie_score",
	"lingering": "lingering_score",
	"unique":    "unique_score",
	"dresscode": "dresscode_score",
}

// ListRestaurants returns complete, active restaurants, optionally filtered
// by name, location or a travel-profile score.
func (a *API) ListRestaurants(c *gin.Context) {
	query := a.DB.Model(&models.Restaurant{}).
		Where("restaurants.is_active = ?", true)

	status := c.DefaultQuery("status", string(models.StatusComplete))
	if !models.PipelineStatus(status).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown pipeline status: " + status})
		return
	}
	query = query.Where("restaurants.pipeline_status = ?", status)

	if search := c.Query("search"); search != "" {
		query = query.Where("restaurants.name LIKE ?", "%"+search+"%")
	}
	if location := c.Query("location"); location != "" {
		query = query.Where("restaurants.address LIKE ?", "%"+location+"%")
	}

	if profile := c.Query("profile"); profile != "" {
		column, ok := profileColumns[profile]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown profile: " + profile})
			return
		}
		minScore := 7
		if v := c.Query("min_score"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 10 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be 1-10"})
				return
			}
			minScore = n
		}
		query = query.
			Joins("JOIN enrichments ON enrichments.place_id = restaurants.place_id").
			Where("enrichments."+column+" >= ?", minScore).
			Order("enrichments." + column + " DESC")
	}

	var restaurants []models.Restaurant
	query.Order("restaurants.rating DESC, restaurants.rating_count DESC").
		Limit(120).
		Find(&restaurants)

	c.JSON(http.StatusOK, gin.H{
		"count":       len(restaurants),
		"restaurants": restaurants,
	})
}

// GetRestaurant returns one restaurant with its enrichment and details.
func (a *API) GetRestaurant(c *gin.Context) {
	placeID := c.Param("place_id")

	var restaurant models.Restaurant
	if err := a.DB.Where("place_id = ?", placeID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}

	resp := gin.H{"restaurant": restaurant}
	var enrichment models.Enrichment
	if err := a.DB.Where("place_id = ?", placeID).First(&enrichment).Error; err == nil {
		resp["enrichment"] = enrichment
	}
	var details models.PlaceDetails
	if err := a.DB.Where("place_id = ?", placeID).First(&details).Error; err == nil {
		resp["details"] = details
	}
	var embedding models.Embedding
	if err := a.DB.Select("id", "place_id", "model", "embedded_at").
		Where("place_id = ?", placeID).First(&embedding).Error; err == nil {
		resp["embedding"] = embedding
	}
	c.JSON(http.StatusOK, resp)
}

// GetSimilar returns the top-N most similar restaurants for a place.
func (a *API) GetSimilar(c *gin.Context) {
	placeID := c.Param("place_id")
	n := 10
	if v := c.Query("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}

	matches, err := a.Rec.Similar(placeID, n)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// Hydrate the ranked ids with their records, keeping the order.
	results := make([]gin.H, 0, len(matches))
	for _, m := range matches {
		var r models.Restaurant
		if err := a.DB.Where("place_id = ?", m.PlaceID).First(&r).Error; err != nil {
			continue
		}
		results = append(results, gin.H{"restaurant": r, "score": m.Score})
	}
	c.JSON(http.StatusOK, gin.H{
		"place_id": placeID,
		"count":    len(results),
		"similar":  results,
	})
}

// GetStateMachineInfo returns the lifecycle state machine for documentation
func (a *API) GetStateMachineInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"statuses":        models.AllStatuses(),
		"transitions":     statemachine.AllTransitions(),
		"terminal_states": []models.PipelineStatus{models.StatusInactive},
		"description":     "Restaurant pipeline lifecycle state machine",
	})
}
