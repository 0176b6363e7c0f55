package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/config"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/admin/handlers"
	"github.com/router-for-me/StationPortal/internal/realtime"
	"github.com/router-for-me/StationPortal/internal/sessions"
	"gorm.io/gorm"
)

// Deps carries the services admin routes need beyond the database.
type Deps struct {
	Sessions  *sessions.Service
	Publisher realtime.Publisher
}

// RegisterAdminRoutes registers the /api/admin routes. Every route requires a
// bearer token and access_admin; write groups additionally require their manage_* permission.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, deps Deps) {
	if r == nil || db == nil {
		return
	}
	if deps.Sessions == nil {
		deps.Sessions = sessions.NewService(db)
	}

	admin := r.Group("/api/admin")
	admin.Use(portalhttp.UserAuthMiddleware(db, jwtCfg), portalhttp.RequirePermission(authz.PermAccessAdmin))

	userHandler := handlers.NewUserHandler(db)
	users := admin.Group("", portalhttp.RequirePermission(authz.PermManageUsers))
	users.GET("/users", userHandler.List)
	users.POST("/users", userHandler.Create)
	users.PUT("/users/:id", userHandler.Update)
	users.DELETE("/users/:id", userHandler.Delete)
	admin.GET("/users-list", userHandler.Brief)
	admin.GET("/owners", userHandler.Owners)

	roleHandler := handlers.NewRoleHandler(db)
	permissionHandler := handlers.NewPermissionHandler(db)
	admin.GET("/roles", roleHandler.List)
	admin.GET("/permissions", permissionHandler.List)
	roles := admin.Group("", portalhttp.RequirePermission(authz.PermManageRoles))
	roles.POST("/roles", roleHandler.Create)
	roles.PUT("/roles/:id", roleHandler.Update)
	roles.DELETE("/roles/:id", roleHandler.Delete)
	roles.POST("/roles/:id/permissions", roleHandler.SetPermissions)
	roles.POST("/permissions", permissionHandler.Create)
	roles.PUT("/permissions/:id", permissionHandler.Update)
	roles.DELETE("/permissions/:id", permissionHandler.Delete)

	areaHandler := handlers.NewAreaHandler(db)
	assignmentHandler := handlers.NewAssignmentHandler(db)
	admin.GET("/areas", areaHandler.Details)
	admin.GET("/areas/details", areaHandler.Details)
	areas := admin.Group("", portalhttp.RequirePermission(authz.PermManageAreas))
	areas.POST("/areas", areaHandler.Create)
	areas.PUT("/areas/:id", areaHandler.Update)
	areas.DELETE("/areas/:id", areaHandler.Delete)
	areas.PUT("/assignments/areas/:id/stations", assignmentHandler.SetAreaStations)
	areas.PUT("/assignments/areas/:id/managers", assignmentHandler.SetAreaManagers)

	owners := admin.Group("", portalhttp.RequirePermission(authz.PermManageStations))
	owners.PUT("/assignments/users/:id/stations", assignmentHandler.SetUserStations)
	owners.PUT("/assignments/stations/:id/owners", assignmentHandler.SetStationOwners)

	stationHandler := handlers.NewStationHandler(db)
	admin.GET("/stations", stationHandler.List)
	info := admin.Group("/station-info", portalhttp.RequirePermission(authz.PermManageStationInfo))
	info.GET("/", stationHandler.InfoList)
	info.POST("/", stationHandler.InfoCreate)
	info.GET("/export", stationHandler.Export)
	info.GET("/:id", stationHandler.InfoGet)
	info.PUT("/:id", stationHandler.InfoUpdate)
	info.DELETE("/:id", stationHandler.InfoDelete)

	apiKeyHandler := handlers.NewAPIKeyHandler(db)
	keys := admin.Group("/api-keys", portalhttp.RequirePermission(authz.PermManageAPIKeys))
	keys.GET("", apiKeyHandler.List)
	keys.POST("", apiKeyHandler.Create)
	keys.PUT("/:id", apiKeyHandler.Update)
	keys.PATCH("/:id/toggle-status", apiKeyHandler.ToggleStatus)
	keys.DELETE("/:id", apiKeyHandler.Delete)

	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Publisher)
	sess := admin.Group("/sessions", portalhttp.RequirePermission(authz.PermManageSessions))
	sess.GET("", sessionHandler.List)
	sess.GET("/history", sessionHandler.History)
	sess.POST("/:user_id/terminate", sessionHandler.Terminate)

	settingsHandler := handlers.NewSettingsHandler(db)
	admin.GET("/settings", settingsHandler.List)
	admin.PUT("/settings/:key", settingsHandler.Update)
}
