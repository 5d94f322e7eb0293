package routes

import (
	"github.com/moritzg809/eateateat/handlers"
	"github.com/moritzg809/eateateat/middleware"
	"github.com/moritzg809/eateateat/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, api *handlers.API) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/login", api.Login)

		public.GET("/restaurants", api.ListRestaurants)
		public.GET("/restaurants/:place_id", api.GetRestaurant)
		public.GET("/restaurants/:place_id/similar", api.GetSimilar)

		// Lifecycle documentation
		public.GET("/state-machine", api.GetStateMachineInfo)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/health", api.PipelineHealth)
		admin.PUT("/restaurants/:place_id/status", api.ForceStatus)
		admin.POST("/pipeline/run", api.RunPipeline)
	}
}
