package routes

import (
	"github.com/gin-gonic/gin"

	"streetlight-watch/controllers"
	"streetlight-watch/middlewares"
	"streetlight-watch/models"
)

func UserRoutes(r *gin.Engine, uc *controllers.UserController, protect gin.HandlerFunc) {
	auth := r.Group("/api/auth", protect)
	{
		auth.GET("/me", uc.GetMe)
		auth.PATCH("/update-profile", uc.UpdateProfile)
		auth.GET("/users", middlewares.RestrictTo(models.RoleAdmin), uc.ListUsers)
	}
}
