package client

import (
	"context"
	"strconv"

	"github.com/router-for-me/StationPortal/internal/assignment"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/report"
	"github.com/router-for-me/StationPortal/internal/stationinfo"
)

// PublicConfig is the unauthenticated site configuration.
type PublicConfig struct {
	SiteName       string `json:"site_name"`
	SessionMinutes int    `json:"session_minutes"`
}

// StationSuggestion is one search hit.
type StationSuggestion struct {
	StationID   string `json:"station_id"`
	StationName string `json:"station_name"`
}

// DashboardQuery selects the dashboard period. Zero fields are omitted.
type DashboardQuery struct {
	Year   int
	Month  int
	Day    int
	IDType string
}

// UserInput is the body of a user create.
type UserInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	ChatID   *string `json:"user_id,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	RoleID   uint64  `json:"role_id"`
}

// APIKeyInput is the body of an API key create.
type APIKeyInput struct {
	Name   *string `json:"name,omitempty"`
	Scope  string  `json:"scope"`
	UserID *uint64 `json:"user_id,omitempty"`
}

// StationInfoQuery mirrors the station-info list and export query string.
type StationInfoQuery struct {
	Search      string
	ProvinceID  string
	SupporterID string
	AMControlID string
	Sort        string // "station_id,-province.name"
}

func (q StationInfoQuery) params() map[string]string {
	out := map[string]string{}
	for key, value := range map[string]string{
		"q":             q.Search,
		"province_id":   q.ProvinceID,
		"supporter_id":  q.SupporterID,
		"am_control_id": q.AMControlID,
		"sort":          q.Sort,
	} {
		if value != "" {
			out[key] = value
		}
	}
	return out
}

// TerminateResult is the outcome of a force logout.
type TerminateResult struct {
	Message            string `json:"message"`
	SessionsTerminated int64  `json:"sessions_terminated"`
	Notified           bool   `json:"notified"`
}

// Login exchanges credentials for a bearer token. The token is not stored.
func (c *Client) Login(ctx context.Context, username, password string) (schema.Token, error) {
	var out schema.Token
	resp, errDo := c.r(ctx).
		SetFormData(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/token")
	if errCheck := check(resp, errDo); errCheck != nil {
		return schema.Token{}, errCheck
	}
	return out, nil
}

// Me returns the signed-in user with role, permissions and assignments.
func (c *Client) Me(ctx context.Context) (*schema.User, error) {
	var out schema.User
	resp, errDo := c.r(ctx).SetResult(&out).Get("/users/me")
	if errCheck := check(resp, errDo); errCheck != nil {
		return nil, errCheck
	}
	return &out, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	resp, errDo := c.r(ctx).Post("/logout")
	return check(resp, errDo)
}

// ChangePassword changes the signed-in user's password. Issued tokens stop working.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	resp, errDo := c.r(ctx).
		SetBody(map[string]string{"old_password": oldPassword, "new_password": newPassword}).
		Put("/users/me/password")
	return check(resp, errDo)
}

// Config returns the public site configuration.
func (c *Client) Config(ctx context.Context) (PublicConfig, error) {
	var out PublicConfig
	resp, errDo := c.r(ctx).SetResult(&out).Get("/config")
	return out, check(resp, errDo)
}

// Sales returns the sales lines of year visible to the user, optionally narrowed by date.
func (c *Client) Sales(ctx context.Context, year int, startDate, endDate string) ([]report.Sale, error) {
	req := c.r(ctx).SetPathParam("year", strconv.Itoa(year))
	if startDate != "" {
		req.SetQueryParam("start_date", startDate)
	}
	if endDate != "" {
		req.SetQueryParam("end_date", endDate)
	}
	var out []report.Sale
	resp, errDo := req.SetResult(&out).Get("/sales/{year}")
	if errCheck := check(resp, errDo); errCheck != nil {
		return nil, errCheck
	}
	return out, nil
}

// Dashboard returns KPIs and chart series for the period.
func (c *Client) Dashboard(ctx context.Context, q DashboardQuery) (report.Dashboard, error) {
	req := c.r(ctx)
	for key, value := range map[string]int{"year": q.Year, "month": q.Month, "day": q.Day} {
		if value > 0 {
			req.SetQueryParam(key, strconv.Itoa(value))
		}
	}
	if q.IDType != "" {
		req.SetQueryParam("id_type", q.IDType)
	}
	var out report.Dashboard
	resp, errDo := req.SetResult(&out).Get("/dashboard/")
	return out, check(resp, errDo)
}

// SearchStations returns up to 20 stations matching text by id or name.
func (c *Client) SearchStations(ctx context.Context, text string) ([]StationSuggestion, error) {
	var out []StationSuggestion
	resp, errDo := c.r(ctx).SetQueryParam("q", text).SetResult(&out).Get("/stations/search")
	if errCheck := check(resp, errDo); errCheck != nil {
		return nil, errCheck
	}
	return out, nil
}

// Users lists dashboard accounts.
func (c *Client) Users(ctx context.Context) ([]schema.User, error) {
	var out []schema.User
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/users")
	return out, check(resp, errDo)
}

// Owners lists users holding the owner role.
func (c *Client) Owners(ctx context.Context) ([]schema.User, error) {
	var out []schema.User
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/owners")
	return out, check(resp, errDo)
}

// UserRefs lists the id and username of every user.
func (c *Client) UserRefs(ctx context.Context) ([]schema.UserRef, error) {
	var out []schema.UserRef
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/users-list")
	return out, check(resp, errDo)
}

// CreateUser creates an account. IsActive nil means active.
func (c *Client) CreateUser(ctx context.Context, in UserInput) (schema.User, error) {
	var out schema.User
	resp, errDo := c.r(ctx).SetBody(in).SetResult(&out).Post("/admin/users")
	return out, check(resp, errDo)
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id uint64) error {
	resp, errDo := c.r(ctx).SetPathParam("id", strconv.FormatUint(id, 10)).Delete("/admin/users/{id}")
	return check(resp, errDo)
}

// Roles lists roles with their permissions.
func (c *Client) Roles(ctx context.Context) ([]schema.Role, error) {
	var out []schema.Role
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/roles")
	return out, check(resp, errDo)
}

// Permissions lists the permission catalogue.
func (c *Client) Permissions(ctx context.Context) ([]schema.Permission, error) {
	var out []schema.Permission
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/permissions")
	return out, check(resp, errDo)
}

// SetRolePermissions replaces the permission set of a role.
func (c *Client) SetRolePermissions(ctx context.Context, roleID uint64, permissionIDs []uint64) (schema.Role, error) {
	var out schema.Role
	resp, errDo := c.r(ctx).
		SetPathParam("id", strconv.FormatUint(roleID, 10)).
		SetBody(map[string][]uint64{"permission_ids": nonNil(permissionIDs)}).
		SetResult(&out).
		Post("/admin/roles/{id}/permissions")
	return out, check(resp, errDo)
}

// Areas lists areas with their stations and managers.
func (c *Client) Areas(ctx context.Context) ([]schema.Area, error) {
	var out []schema.Area
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/areas/details")
	return out, check(resp, errDo)
}

// UpdateArea replaces an area's station and manager sets in one transaction.
func (c *Client) UpdateArea(ctx context.Context, areaID uint64, payload assignment.AreaPayload) (schema.Area, error) {
	var out schema.Area
	resp, errDo := c.r(ctx).
		SetPathParam("id", strconv.FormatUint(areaID, 10)).
		SetBody(assignment.AreaPayload{StationIDs: nonNil(payload.StationIDs), ManagerIDs: nonNil(payload.ManagerIDs)}).
		SetResult(&out).
		Put("/admin/areas/{id}")
	return out, check(resp, errDo)
}

// SetUserStations makes stationIDs the full set of stations owned by a user.
func (c *Client) SetUserStations(ctx context.Context, userID uint64, stationIDs []uint64) error {
	return c.putIDs(ctx, "/admin/assignments/users/{id}/stations", userID, "station_ids", stationIDs)
}

// SetStationOwners makes ownerIDs the full owner set of a station. An empty list releases it.
func (c *Client) SetStationOwners(ctx context.Context, stationID uint64, ownerIDs []uint64) error {
	return c.putIDs(ctx, "/admin/assignments/stations/{id}/owners", stationID, "owner_ids", ownerIDs)
}

func (c *Client) putIDs(ctx context.Context, path string, id uint64, field string, ids []uint64) error {
	resp, errDo := c.r(ctx).
		SetPathParam("id", strconv.FormatUint(id, 10)).
		SetBody(map[string][]uint64{field: nonNil(ids)}).
		Put(path)
	return check(resp, errDo)
}

// Stations lists every station with its area and owners.
func (c *Client) Stations(ctx context.Context) ([]schema.Station, error) {
	var out []schema.Station
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/stations")
	return out, check(resp, errDo)
}

// StationInfo lists station-info rows filtered and sorted by the server.
func (c *Client) StationInfo(ctx context.Context, q StationInfoQuery) ([]stationinfo.Row, error) {
	var out []stationinfo.Row
	resp, errDo := c.r(ctx).SetQueryParams(q.params()).SetResult(&out).Get("/admin/station-info/")
	return out, check(resp, errDo)
}

// ExportStationInfo downloads the filtered station-info table as xlsx or csv.
func (c *Client) ExportStationInfo(ctx context.Context, format string, q StationInfoQuery) ([]byte, error) {
	params := q.params()
	params["format"] = format
	resp, errDo := c.r(ctx).SetQueryParams(params).SetHeader("Accept", "*/*").Get("/admin/station-info/export")
	if errCheck := check(resp, errDo); errCheck != nil {
		return nil, errCheck
	}
	return resp.Body(), nil
}

// APIKeys lists issued keys with masked secrets.
func (c *Client) APIKeys(ctx context.Context) ([]schema.APIKey, error) {
	var out []schema.APIKey
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/api-keys")
	return out, check(resp, errDo)
}

// CreateAPIKey issues a key. The returned Key is the only time the secret is visible.
func (c *Client) CreateAPIKey(ctx context.Context, in APIKeyInput) (schema.APIKey, error) {
	var out schema.APIKey
	resp, errDo := c.r(ctx).SetBody(in).SetResult(&out).Post("/admin/api-keys")
	return out, check(resp, errDo)
}

// ToggleAPIKey flips a key's active flag.
func (c *Client) ToggleAPIKey(ctx context.Context, id string) (schema.APIKey, error) {
	var out schema.APIKey
	resp, errDo := c.r(ctx).SetPathParam("id", id).SetResult(&out).Patch("/admin/api-keys/{id}/toggle-status")
	return out, check(resp, errDo)
}

// DeleteAPIKey removes a key.
func (c *Client) DeleteAPIKey(ctx context.Context, id string) error {
	resp, errDo := c.r(ctx).SetPathParam("id", id).Delete("/admin/api-keys/{id}")
	return check(resp, errDo)
}

// ActiveSessions lists signed-in sessions.
func (c *Client) ActiveSessions(ctx context.Context) ([]schema.ActiveSession, error) {
	var out []schema.ActiveSession
	resp, errDo := c.r(ctx).SetResult(&out).Get("/admin/sessions")
	return out, check(resp, errDo)
}

// TerminateSessions signs a user out everywhere and pushes message to their open dashboards.
func (c *Client) TerminateSessions(ctx context.Context, userID uint64, message string) (TerminateResult, error) {
	req := c.r(ctx).SetPathParam("user_id", strconv.FormatUint(userID, 10))
	if message != "" {
		req.SetBody(map[string]string{"message": message})
	}
	var out TerminateResult
	resp, errDo := req.SetResult(&out).Post("/admin/sessions/{user_id}/terminate")
	return out, check(resp, errDo)
}

// WebViewLinks lists embeddable links; all includes inactive ones.
func (c *Client) WebViewLinks(ctx context.Context, all bool) ([]schema.WebViewLink, error) {
	path := "/webview-links"
	if all {
		path = "/webview-links/all"
	}
	var out []schema.WebViewLink
	resp, errDo := c.r(ctx).SetResult(&out).Get(path)
	return out, check(resp, errDo)
}

func nonNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}
