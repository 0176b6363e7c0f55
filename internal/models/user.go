package models

import "time"

// User represents a dashboard account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username       string  `gorm:"type:varchar(100);not null;uniqueIndex"` // Unique login name.
	Email          string  `gorm:"type:varchar(100);not null;uniqueIndex"` // Unique email address.
	ChatID         *string `gorm:"type:varchar(100)"`                      // Optional external chat identifier.
	HashedPassword string  `gorm:"type:varchar(255);not null"`             // Bcrypt password hash.

	IsActive     bool `gorm:"not null;default:true"` // Whether the user can sign in.
	TokenVersion int  `gorm:"not null;default:0"`    // Bumped to invalidate issued tokens.

	RoleID *uint64 `gorm:"index"`             // Assigned role.
	Role   *Role   `gorm:"foreignKey:RoleID"` // Associated role record.

	ManagedAreas  []Area    `gorm:"many2many:user_area_assignments;"`    // Areas managed by the user.
	OwnedStations []Station `gorm:"many2many:user_station_assignments;"` // Stations owned by the user.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// RoleName returns the role name or an empty string when no role is assigned.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// PermissionNames returns the names of the permissions granted through the user's role.
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
