package controllers

import (
	"github.com/gin-gonic/gin"

	"streetlight-watch/apperrors"
	"streetlight-watch/middlewares"
	"streetlight-watch/services"
)

func respondError(c *gin.Context, err error) {
	middlewares.AbortWithError(c, err)
}

// actorFrom returns the caller set by the auth middleware.
func actorFrom(c *gin.Context) (services.Actor, bool) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("You are not logged in. Please log in to get access."))
		return services.Actor{}, false
	}
	return services.ActorFromUser(user), true
}

// bindJSON decodes the body into dst, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperrors.Validation("Invalid request body", err.Error()))
		return false
	}
	return true
}
