package front

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/config"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/front/handlers"
	"github.com/router-for-me/StationPortal/internal/metrics"
	"github.com/router-for-me/StationPortal/internal/realtime"
	"github.com/router-for-me/StationPortal/internal/sessions"
	"gorm.io/gorm"
)

// Deps carries the services dashboard routes need beyond the database.
type Deps struct {
	// Base bounds websocket connections; they close when it is cancelled.
	Base     context.Context
	Sessions *sessions.Service
	Hub      *realtime.Hub
	Metrics  *metrics.Collectors
	Origins  []string
}

// RegisterFrontRoutes registers public and authenticated dashboard routes under /api.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, deps Deps) {
	if r == nil || db == nil {
		return
	}

	api := r.Group("/api")

	authHandler := handlers.NewAuthHandler(db, jwtCfg, deps.Sessions, deps.Metrics)
	api.POST("/token", authHandler.Token)
	api.GET("/config", handlers.PublicConfig(jwtCfg))

	if deps.Hub != nil {
		notifications := handlers.NewNotificationsHandler(deps.Base, db, jwtCfg, deps.Hub, deps.Origins)
		api.GET("/ws/notifications", notifications.Serve)
	}

	authed := api.Group("")
	authed.Use(portalhttp.UserAuthMiddleware(db, jwtCfg))

	authed.GET("/users/me", authHandler.Me)
	authed.POST("/logout", authHandler.Logout)
	profileHandler := handlers.NewProfileHandler(db)
	authed.PUT("/users/me/password", profileHandler.ChangePassword)

	salesHandler := handlers.NewSalesHandler(db)
	authed.GET("/sales/:year", portalhttp.RequirePermission(authz.PermViewReports), salesHandler.Sales)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/", portalhttp.RequirePermission(authz.PermViewDashboard), dashboardHandler.Get)

	lookupHandler := handlers.NewLookupHandler(db)
	authed.GET("/stations/search", lookupHandler.SearchStations)
	lookups := authed.Group("/lookups", portalhttp.RequirePermission(authz.PermManageStationInfo, authz.PermAccessAdmin))
	lookups.GET("/am-controls", lookupHandler.AMControls)
	lookups.GET("/supporters", lookupHandler.Supporters)
	lookups.GET("/provinces", lookupHandler.Provinces)

	webViewHandler := handlers.NewWebViewHandler(db)
	authed.GET("/webview-links", portalhttp.RequirePermission(authz.PermViewWebView, authz.PermManageWebView), webViewHandler.ListActive)
	links := authed.Group("/webview-links", portalhttp.RequirePermission(authz.PermManageWebView))
	links.GET("/all", webViewHandler.ListAll)
	links.POST("", webViewHandler.Create)
	links.PUT("/:id", webViewHandler.Update)
	links.DELETE("/:id", webViewHandler.Delete)
}
