package routes

import (
	"github.com/gin-gonic/gin"

	"streetlight-watch/controllers"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, ac *controllers.AuthController, protect, loginLimit gin.HandlerFunc) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", ac.Register)
		auth.POST("/login", loginLimit, ac.Login)
		auth.POST("/forgot-password", ac.ForgotPassword)
		auth.PATCH("/reset-password/:token", ac.ResetPassword)

		auth.GET("/logout", protect, ac.Logout)
		auth.PATCH("/change-password", protect, ac.ChangePassword)
	}
}
