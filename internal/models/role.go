package models

// Role groups permissions assigned to users.
type Role struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string  `gorm:"type:varchar(50);not null;uniqueIndex"` // Unique role name.
	Description *string `gorm:"type:varchar(255)"`                     // Optional description.

	Permissions []Permission `gorm:"many2many:role_permissions;"` // Granted permissions.
}

// Permission is a named capability token such as view_dashboard.
type Permission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string  `gorm:"type:varchar(100);not null;uniqueIndex"` // Unique permission token.
	Description *string `gorm:"type:varchar(255)"`                      // Optional description.
}
