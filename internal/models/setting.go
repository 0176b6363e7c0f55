package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores a runtime setting as JSON.
type Setting struct {
	Key       string         `gorm:"type:varchar(255);primaryKey"`                      // Setting key.
	Value     datatypes.JSON `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
