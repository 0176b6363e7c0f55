// Package schema defines the JSON bodies shared by the API handlers and the client.
package schema

import (
	"time"

	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/util"
)

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Permission is a permission token.
type Permission struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// Role is a role with its granted permissions.
type Role struct {
	ID          uint64       `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// AreaRef identifies an area.
type AreaRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// StationRef identifies a station.
type StationRef struct {
	ID          uint64  `json:"id"`
	StationID   string  `json:"station_id"`
	StationName string  `json:"station_name"`
	AreaID      *uint64 `json:"area_id"`
	Active      *int    `json:"active"`
}

// UserRef identifies a user.
type UserRef struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// User is a dashboard account as returned by the API.
type User struct {
	ID            uint64       `json:"id"`
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	ChatID        *string      `json:"user_id"`
	IsActive      bool         `json:"is_active"`
	Role          *Role        `json:"role"`
	ManagedAreas  []AreaRef    `json:"managed_areas"`
	OwnedStations []StationRef `json:"owned_stations"`
	CreatedAt     time.Time    `json:"created_at"`
}

// RoleName implements authz.Principal.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// PermissionNames implements authz.Principal.
func (u *User) PermissionNames() []string {
	if u == nil || u.Role == nil {
		return nil
	}
	out := make([]string, 0, len(u.Role.Permissions))
	for _, p := range u.Role.Permissions {
		out = append(out, p.Name)
	}
	return out
}

// Area is an area with its stations and managers.
type Area struct {
	ID       uint64       `json:"id"`
	Name     string       `json:"name"`
	Stations []StationRef `json:"stations"`
	Managers []UserRef    `json:"managers"`
}

// Station is a station with its area and owners.
type Station struct {
	StationRef
	Area   *AreaRef  `json:"area"`
	Owners []UserRef `json:"owners"`
}

// APIKey is an issued API key. Key is masked except in the create response.
type APIKey struct {
	ID         string     `json:"id"`
	Name       *string    `json:"name"`
	Key        string     `json:"key"`
	Scope      string     `json:"scope"`
	IsActive   bool       `json:"is_active"`
	UserID     *uint64    `json:"user_id"`
	Username   string     `json:"username,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// WebViewLink is an embeddable dashboard link.
type WebViewLink struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveSession is a signed-in session.
type ActiveSession struct {
	SessionID string    `json:"session_id"`
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	LoginTime time.Time `json:"login_time"`
}

// SessionHistory is a past or current login.
type SessionHistory struct {
	ID         uint64     `json:"id"`
	UserID     uint64     `json:"user_id"`
	LoginTime  time.Time  `json:"login_time"`
	LogoutTime *time.Time `json:"logout_time"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
}

// FromPermission converts a permission model.
func FromPermission(p models.Permission) Permission {
	return Permission{ID: p.ID, Name: p.Name, Description: p.Description}
}

// FromRole converts a role model with its loaded permissions.
func FromRole(r models.Role) Role {
	out := Role{ID: r.ID, Name: r.Name, Description: r.Description, Permissions: make([]Permission, 0, len(r.Permissions))}
	for _, p := range r.Permissions {
		out.Permissions = append(out.Permissions, FromPermission(p))
	}
	return out
}

// FromStationRef converts a station model to its reference form.
func FromStationRef(s models.Station) StationRef {
	return StationRef{ID: s.ID, StationID: s.StationID, StationName: s.StationName, AreaID: s.AreaID, Active: s.Active}
}

// FromUser converts a user model with whatever associations are loaded.
func FromUser(u models.User) User {
	out := User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		ChatID:        u.ChatID,
		IsActive:      u.IsActive,
		ManagedAreas:  make([]AreaRef, 0, len(u.ManagedAreas)),
		OwnedStations: make([]StationRef, 0, len(u.OwnedStations)),
		CreatedAt:     u.CreatedAt,
	}
	if u.Role != nil {
		role := FromRole(*u.Role)
		out.Role = &role
	}
	for _, a := range u.ManagedAreas {
		out.ManagedAreas = append(out.ManagedAreas, AreaRef{ID: a.ID, Name: a.Name})
	}
	for _, s := range u.OwnedStations {
		out.OwnedStations = append(out.OwnedStations, FromStationRef(s))
	}
	return out
}

// FromArea converts an area model with loaded stations and managers.
func FromArea(a models.Area) Area {
	out := Area{ID: a.ID, Name: a.Name, Stations: make([]StationRef, 0, len(a.Stations)), Managers: make([]UserRef, 0, len(a.Managers))}
	for _, s := range a.Stations {
		out.Stations = append(out.Stations, FromStationRef(s))
	}
	for _, m := range a.Managers {
		out.Managers = append(out.Managers, UserRef{ID: m.ID, Username: m.Username})
	}
	return out
}

// FromStation converts a station model with loaded area and owners.
func FromStation(s models.Station) Station {
	out := Station{StationRef: FromStationRef(s), Owners: make([]UserRef, 0, len(s.Owners))}
	if s.Area != nil {
		out.Area = &AreaRef{ID: s.Area.ID, Name: s.Area.Name}
	}
	for _, o := range s.Owners {
		out.Owners = append(out.Owners, UserRef{ID: o.ID, Username: o.Username})
	}
	return out
}

// FromAPIKey converts an API key model, masking the secret unless reveal is set.
func FromAPIKey(k models.APIKey, reveal bool) APIKey {
	out := APIKey{
		ID:         k.ID,
		Name:       k.Name,
		Key:        k.Key,
		Scope:      k.Scope,
		IsActive:   k.IsActive,
		UserID:     k.UserID,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
	}
	if !reveal {
		out.Key = util.MaskSecret(k.Key)
	}
	if k.User != nil {
		out.Username = k.User.Username
	}
	return out
}

// FromWebViewLink converts a web-view link model.
func FromWebViewLink(l models.WebViewLink) WebViewLink {
	return WebViewLink{ID: l.ID, Title: l.Title, URL: l.URL, IsActive: l.IsActive, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
}

// FromActiveSession converts an active session model.
func FromActiveSession(s models.ActiveSession) ActiveSession {
	return ActiveSession{SessionID: s.SessionID, UserID: s.UserID, Username: s.Username, IPAddress: s.IPAddress, UserAgent: s.UserAgent, LoginTime: s.LoginTime}
}

// FromSessionHistory converts a session history model.
func FromSessionHistory(h models.SessionHistory) SessionHistory {
	return SessionHistory{ID: h.ID, UserID: h.UserID, LoginTime: h.LoginTime, LogoutTime: h.LogoutTime, IPAddress: h.IPAddress, UserAgent: h.UserAgent}
}
