package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/router-for-me/StationPortal/internal/config"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/realtime"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NotificationsHandler upgrades authenticated clients onto the realtime hub.
type NotificationsHandler struct {
	db       *gorm.DB
	jwtCfg   config.JWTConfig
	hub      *realtime.Hub
	base     context.Context
	upgrader websocket.Upgrader
}

// NewNotificationsHandler constructs a NotificationsHandler. Connections end when
// base is cancelled. origins restricts the Origin header; empty or "*" allows any.
func NewNotificationsHandler(base context.Context, db *gorm.DB, jwtCfg config.JWTConfig, hub *realtime.Hub, origins []string) *NotificationsHandler {
	if base == nil {
		base = context.Background()
	}
	return &NotificationsHandler{
		db:     db,
		jwtCfg: jwtCfg,
		hub:    hub,
		base:   base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

// Serve validates ?token= and streams notifications until the client leaves.
func (h *NotificationsHandler) Serve(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		portalhttp.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	user, errAuth := portalhttp.AuthenticateToken(c.Request.Context(), h.db, h.jwtCfg.Secret, token)
	if errAuth != nil {
		if errors.Is(errAuth, portalhttp.ErrInactiveUser) {
			portalhttp.Error(c, http.StatusBadRequest, "Inactive user")
			return
		}
		portalhttp.Error(c, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	conn, errUpgrade := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if errUpgrade != nil {
		log.WithError(errUpgrade).WithField("user_id", user.ID).Debug("websocket upgrade failed")
		return
	}
	h.hub.Serve(h.base, conn, user.ID)
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, errParse := url.Parse(origin); errParse == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}
