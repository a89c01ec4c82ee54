package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streetlight-watch/controllers"
)

func HealthRoutes(r *gin.Engine, hc *controllers.HealthController) {
	r.GET("/api/health", hc.Health)
	r.GET("/api/docs", controllers.Docs(r.Routes))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
