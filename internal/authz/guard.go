package authz

// Decision is the outcome of evaluating a route guard.
type Decision int

const (
	// DecisionRedirect sends an unauthenticated visitor to the login route.
	DecisionRedirect Decision = iota
	// DecisionLoading means the session is still being resolved.
	DecisionLoading
	// DecisionDenied renders the access denied view.
	DecisionDenied
	// DecisionAllow renders the route.
	DecisionAllow
)

// String returns a short label for logs and CLI output.
func (d Decision) String() string {
	switch d {
	case DecisionRedirect:
		return "redirect"
	case DecisionLoading:
		return "loading"
	case DecisionDenied:
		return "denied"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Guard evaluates a route guard for the current session state.
func Guard(p Principal, loading bool, required ...string) Decision {
	if loading {
		return DecisionLoading
	}
	if isNil(p) {
		return DecisionRedirect
	}
	if HasPermission(p, required...) {
		return DecisionAllow
	}
	return DecisionDenied
}

// Route binds a dashboard path to the permissions that open it.
type Route struct {
	Path     string
	Label    string
	Required []string
}

var routes = []Route{
	{Path: "/dashboard", Label: "Dashboard", Required: []string{PermViewDashboard}},
	{Path: "/reports", Label: "Reports", Required: []string{PermViewReports}},
	{Path: "/admin", Label: "Admin", Required: []string{PermAccessAdmin}},
	{Path: "/settings", Label: "Settings", Required: []string{PermManageRoles}},
	{Path: "/assignments/areas", Label: "Area assignments", Required: []string{PermManageAreas}},
	{Path: "/assignments/stations", Label: "Station assignments", Required: []string{PermManageStations}},
	{Path: "/station-info", Label: "Station info", Required: []string{PermManageStationInfo}},
	{Path: "/api-keys", Label: "API keys", Required: []string{PermManageAPIKeys}},
	{Path: "/webview", Label: "Web viewer", Required: []string{PermViewWebView}},
	{Path: "/sessions", Label: "Sessions", Required: []string{PermManageSessions}},
	{Path: "/notifications", Label: "Notifications", Required: nil},
}

// Routes returns the dashboard route table.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// LookupRoute returns the route registered for path.
func LookupRoute(path string) (Route, bool) {
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// VisibleRoutes filters the route table to what p may open, in table order.
func VisibleRoutes(p Principal) []Route {
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		if HasPermission(p, r.Required...) {
			out = append(out, r)
		}
	}
	return out
}
