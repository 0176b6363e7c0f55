package assignment

// RolePermissionsPayload is the full-replace body saved for a role.
type RolePermissionsPayload struct {
	PermissionIDs []uint64 `json:"permission_ids"`
}

// PermissionSelection is the checkbox state of one role's permissions.
type PermissionSelection struct {
	roleID  uint64
	initial []uint64
	working *idSet
}

// NewPermissionSelection seeds the selection from the role's current permission ids.
func NewPermissionSelection(roleID uint64, current []uint64) *PermissionSelection {
	return &PermissionSelection{roleID: roleID, initial: append([]uint64(nil), current...), working: newIDSet(current)}
}

// RoleID returns the edited role id.
func (p *PermissionSelection) RoleID() uint64 { return p.roleID }

// Toggle flips one permission.
func (p *PermissionSelection) Toggle(permissionID uint64) {
	if p.working.has(permissionID) {
		p.working.remove(permissionID)
		return
	}
	p.working.add(permissionID)
}

// Selected reports whether the permission is checked.
func (p *PermissionSelection) Selected(permissionID uint64) bool { return p.working.has(permissionID) }

// Dirty reports whether the selection differs from the role's saved permissions.
func (p *PermissionSelection) Dirty() bool { return !p.working.equal(p.initial) }

// Payload returns the complete selected set.
func (p *PermissionSelection) Payload() RolePermissionsPayload {
	return RolePermissionsPayload{PermissionIDs: p.working.slice()}
}
