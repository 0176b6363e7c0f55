package client

import (
	"context"
	"strings"

	"github.com/router-for-me/StationPortal/internal/assignment"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
)

// StationRefs converts fetched stations to editor references.
func StationRefs(stations []schema.Station) []assignment.StationRef {
	out := make([]assignment.StationRef, 0, len(stations))
	for _, s := range stations {
		out = append(out, assignment.StationRef{ID: s.ID, StationID: s.StationID, Name: s.StationName})
	}
	return out
}

// NewAreaEditor seeds an area editor from /admin/areas/details and /admin/stations.
func NewAreaEditor(areas []schema.Area, stations []schema.Station, areaID uint64) (*assignment.AreaEditor, error) {
	states := make([]assignment.AreaState, 0, len(areas))
	for _, a := range areas {
		state := assignment.AreaState{ID: a.ID, Name: a.Name}
		for _, s := range a.Stations {
			state.StationIDs = append(state.StationIDs, s.ID)
		}
		for _, m := range a.Managers {
			state.ManagerIDs = append(state.ManagerIDs, m.ID)
		}
		states = append(states, state)
	}
	return assignment.NewAreaEditor(states, StationRefs(stations), areaID)
}

// NewOwnerEditor seeds an owner editor from the owners list and /admin/stations.
// Users without the owner role are ignored.
func NewOwnerEditor(users []schema.User, stations []schema.Station, ownerID uint64) (*assignment.OwnerEditor, error) {
	owners := make([]assignment.OwnerState, 0, len(users))
	for _, u := range users {
		if !strings.EqualFold(u.RoleName(), authz.RoleOwner) {
			continue
		}
		state := assignment.OwnerState{ID: u.ID, Username: u.Username}
		for _, s := range u.OwnedStations {
			state.StationIDs = append(state.StationIDs, s.ID)
		}
		owners = append(owners, state)
	}
	return assignment.NewOwnerEditor(owners, StationRefs(stations), ownerID)
}

// SaveArea stores an area editor's working set and manager in a single request,
// then returns the area as the server now lists it.
func (c *Client) SaveArea(ctx context.Context, areaID uint64, payload assignment.AreaPayload) (schema.Area, error) {
	if _, errSave := c.UpdateArea(ctx, areaID, payload); errSave != nil {
		return schema.Area{}, errSave
	}
	areas, errAreas := c.Areas(ctx)
	if errAreas != nil {
		return schema.Area{}, errAreas
	}
	for _, a := range areas {
		if a.ID == areaID {
			return a, nil
		}
	}
	return schema.Area{}, assignment.ErrUnknownArea
}

// SaveOwner stores an owner editor's working set and returns the owner as the server now lists it.
func (c *Client) SaveOwner(ctx context.Context, ownerID uint64, payload assignment.OwnerPayload) (schema.User, error) {
	if errSave := c.SetUserStations(ctx, ownerID, payload.StationIDs); errSave != nil {
		return schema.User{}, errSave
	}
	owners, errOwners := c.Owners(ctx)
	if errOwners != nil {
		return schema.User{}, errOwners
	}
	for _, u := range owners {
		if u.ID == ownerID {
			return u, nil
		}
	}
	return schema.User{}, assignment.ErrUnknownOwner
}

// RoleEditor edits the permission set of one role.
type RoleEditor struct {
	*assignment.PermissionSelection
	Role schema.Role
}

// NewRoleEditor seeds the selection from the role's current permissions.
func NewRoleEditor(role schema.Role) *RoleEditor {
	ids := make([]uint64, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		ids = append(ids, p.ID)
	}
	return &RoleEditor{PermissionSelection: assignment.NewPermissionSelection(role.ID, ids), Role: role}
}

// Save submits the full selected set and reseeds the editor from the server's answer.
func (e *RoleEditor) Save(ctx context.Context, api *Client) error {
	updated, errSave := api.SetRolePermissions(ctx, e.RoleID(), e.Payload().PermissionIDs)
	if errSave != nil {
		return errSave
	}
	*e = *NewRoleEditor(updated)
	return nil
}
