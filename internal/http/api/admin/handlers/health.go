package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/db"
	"gorm.io/gorm"
)

// Pinger checks a dependency's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	conn  *gorm.DB
	redis Pinger
}

// NewHealthHandler constructs a HealthHandler. redis may be nil.
func NewHealthHandler(conn *gorm.DB, redis Pinger) *HealthHandler {
	return &HealthHandler{conn: conn, redis: redis}
}

// Healthz checks database and broker connectivity.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	body := gin.H{"ok": true, "database": "ok"}
	status := http.StatusOK

	if errPing := db.Ping(ctx, h.conn); errPing != nil {
		body["ok"] = false
		body["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		body["broker"] = "ok"
		if errPing := h.redis.Ping(ctx); errPing != nil {
			body["ok"] = false
			body["broker"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, body)
}
