package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"streetlight-watch/apperrors"
	"streetlight-watch/models"
)

const (
	TokenCookie = "token"

	userKey   = "user"
	userIDKey = "user_id"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AbortWithError writes the error body used by every handler.
func AbortWithError(c *gin.Context, err error) {
	body := gin.H{"success": false, "error": apperrors.MessageOf(err)}
	if details := apperrors.DetailsOf(err); len(details) > 0 {
		body["details"] = details
	}
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err), body)
}

func tokenFrom(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" && cookie != "loggedout" {
		return cookie
	}
	return ""
}

// AuthMiddleware requires a valid session token in the Authorization
// header or the token cookie.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), tokenFrom(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID.Hex())
		c.Next()
	}
}

// RestrictTo only lets the given roles through. It must run after
// AuthMiddleware.
func RestrictTo(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			AbortWithError(c, apperrors.Unauthorized("You are not logged in. Please log in to get access."))
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		AbortWithError(c, apperrors.Forbidden("You do not have permission to perform this action"))
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// NoRoute answers unknown paths in the common error format.
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route " + c.Request.URL.Path + " not found"})
}
