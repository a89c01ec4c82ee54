package routes

import (
	"github.com/gin-gonic/gin"

	"streetlight-watch/controllers"
	"streetlight-watch/middlewares"
	"streetlight-watch/models"
)

// ReportRoutes sets up the report routes
func ReportRoutes(r *gin.Engine, rc *controllers.ReportController, protect, createLimit gin.HandlerFunc) {
	reports := r.Group("/api/reports")
	reports.GET("/nearby", rc.GetNearbyReports)

	reports.Use(protect)
	{
		reports.GET("", rc.GetReports)
		reports.POST("", createLimit, rc.CreateReport)
		reports.GET("/stats", middlewares.RestrictTo(models.RoleAdmin), rc.GetStats)
		reports.GET("/:id", rc.GetReport)
		reports.PATCH("/:id", rc.UpdateReport)
		reports.DELETE("/:id", middlewares.RestrictTo(models.RoleAdmin), rc.DeleteReport)
		reports.POST("/:id/images", rc.AddImages)
	}
}
