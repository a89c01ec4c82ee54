package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streetlight-watch/controllers"
	"streetlight-watch/middlewares"
)

// Handlers groups the controllers mounted on the router.
type Handlers struct {
	Auth    *controllers.AuthController
	Users   *controllers.UserController
	Reports *controllers.ReportController
	Health  *controllers.HealthController
}

type RouterConfig struct {
	CORSOrigins        []string
	MaxMultipartMemory int64
	LoginLimit         middlewares.RateLimitRule
	ReportLimit        middlewares.RateLimitRule
}

// NewRouter builds the gin engine with the common middleware chain and
// every route group.
func NewRouter(h Handlers, auth middlewares.Authenticator, limiter middlewares.Limiter, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}

	r.Use(middlewares.RequestID(), middlewares.AccessLog(log), middlewares.Recovery(log))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	protect := middlewares.AuthMiddleware(auth)
	loginLimit := middlewares.RateLimit(limiter, cfg.LoginLimit, log)
	reportLimit := middlewares.RateLimit(limiter, cfg.ReportLimit, log)

	HealthRoutes(r, h.Health)
	AuthRoutes(r, h.Auth, protect, loginLimit)
	UserRoutes(r, h.Users, protect)
	ReportRoutes(r, h.Reports, protect, reportLimit)

	r.NoRoute(middlewares.NoRoute)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{middlewares.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
