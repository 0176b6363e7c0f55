package authz

// Permission tokens granted through roles.
const (
	PermViewDashboard     = "view_dashboard"
	PermViewReports       = "view_reports"
	PermAccessAdmin       = "access_admin"
	PermManageUsers       = "manage_users"
	PermManageRoles       = "manage_roles"
	PermManageAreas       = "manage_areas"
	PermManageStations    = "manage_stations"
	PermManageStationInfo = "manage_station_info"
	PermManageAPIKeys     = "manage_api_keys"
	PermManageWebView     = "manage_webview"
	PermViewWebView       = "view_webview"
	PermManageSessions    = "manage_sessions"
	PermExport            = "export"
	PermFilter            = "filter"

	// PermAll is the sentinel that matches any user holding a session.
	PermAll = "all"
)

// Role names with built-in meaning.
const (
	RoleAdmin = "admin"
	RoleArea  = "area"
	RoleOwner = "owner"
)

// Definition describes a permission seeded into the database.
type Definition struct {
	Name        string
	Description string
}

var definitions = []Definition{
	{Name: PermViewDashboard, Description: "View the sales dashboard"},
	{Name: PermViewReports, Description: "View sales reports"},
	{Name: PermAccessAdmin, Description: "Open the admin area"},
	{Name: PermManageUsers, Description: "Create, edit and delete users"},
	{Name: PermManageRoles, Description: "Edit roles and their permissions"},
	{Name: PermManageAreas, Description: "Edit areas and area assignments"},
	{Name: PermManageStations, Description: "Edit station owner assignments"},
	{Name: PermManageStationInfo, Description: "Edit station information"},
	{Name: PermManageAPIKeys, Description: "Issue and revoke API keys"},
	{Name: PermManageWebView, Description: "Edit web viewer links"},
	{Name: PermViewWebView, Description: "Open web viewer links"},
	{Name: PermManageSessions, Description: "List and terminate user sessions"},
	{Name: PermExport, Description: "Export report data"},
	{Name: PermFilter, Description: "Filter report data"},
}

// Definitions returns a copy of the permission catalogue.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefaultRolePermissions returns the permissions seeded for the built-in non-admin roles.
// The admin role bypasses permission checks and is seeded with the full catalogue.
func DefaultRolePermissions() map[string][]string {
	return map[string][]string{
		RoleArea:  {PermViewDashboard, PermViewReports, PermViewWebView, PermFilter, PermExport},
		RoleOwner: {PermViewDashboard, PermViewReports, PermViewWebView},
	}
}
