package models

import "time"

// Area groups stations under one or more manager users.
type Area struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:varchar(100);not null;uniqueIndex"` // Unique area name.

	Stations []Station `gorm:"foreignKey:AreaID"`                // Stations assigned to the area.
	Managers []User    `gorm:"many2many:user_area_assignments;"` // Managing users.
}

// Station holds station metadata. A station belongs to at most one area.
type Station struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	StationID   string `gorm:"column:station_id;type:varchar(11);not null;uniqueIndex"` // Business identifier.
	StationName string `gorm:"type:varchar(500)"`                                       // Display name.
	AMControl   string `gorm:"column:am_control;type:text"`                             // Legacy AM control label.

	ProvinceID  *string `gorm:"type:varchar(10);index"` // Province lookup.
	SupporterID *uint64 `gorm:"index"`                  // Supporter lookup.
	AMControlID *uint64 `gorm:"index"`                  // AM control lookup.

	Province      *Province  `gorm:"foreignKey:ProvinceID"`
	Supporter     *Supporter `gorm:"foreignKey:SupporterID"`
	AMControlInfo *AMControl `gorm:"foreignKey:AMControlID"`

	Active *int `gorm:"default:1"` // 1 active, 0 inactive, nil unset.

	AreaID *uint64 `gorm:"index"`             // Owning area, nil when unassigned.
	Area   *Area   `gorm:"foreignKey:AreaID"` // Associated area record.

	Owners []User `gorm:"many2many:user_station_assignments;"` // Owning users.
}

// TableName keeps the historical table name.
func (Station) TableName() string { return "station_info" }

// Province is a province lookup entry keyed by code.
type Province struct {
	ID          string  `gorm:"type:varchar(10);primaryKey"` // Province code.
	Name        string  `gorm:"type:varchar(255)"`           // Display name.
	Description *string `gorm:"type:text"`                   // Optional description.
}

// Supporter is a supporter lookup entry.
type Supporter struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`   // Primary key.
	SupporterName string    `gorm:"type:varchar(100);not null"` // Display name.
	Email         string    `gorm:"type:varchar(100);not null"` // Contact email.
	CreatedAt     time.Time `gorm:"autoCreateTime"`             // Creation timestamp.
}

// AMControl is an area-manager control lookup entry.
type AMControl struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`   // Primary key.
	Name      string    `gorm:"type:varchar(100);not null"` // Display name.
	Email     string    `gorm:"type:varchar(100);not null"` // Contact email.
	CreatedAt time.Time `gorm:"autoCreateTime"`             // Creation timestamp.
}
