package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	store   Pinger
	started time.Time
}

func NewHealthController(store Pinger) *HealthController {
	return &HealthController{store: store, started: time.Now()}
}

func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	database := "connected"
	if err := hc.store.Ping(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
		database = "unavailable"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"database":  database,
		"uptime":    time.Since(hc.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}
