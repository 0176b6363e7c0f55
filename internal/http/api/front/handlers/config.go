package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/settings"
)

type publicConfigResponse struct {
	SiteName       string `json:"site_name"`
	SessionMinutes int    `json:"session_minutes"`
	Notifications  string `json:"notifications_path"`
}

// PublicConfig serves the unauthenticated dashboard bootstrap: site name,
// access token lifetime and where to open the notification socket.
func PublicConfig(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, publicConfigResponse{
			SiteName:       settings.SiteName(),
			SessionMinutes: int(jwtCfg.Expiry().Minutes()),
			Notifications:  "/api/ws/notifications",
		})
	}
}
