package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActiveSession tracks a currently signed-in session.
type ActiveSession struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SessionID string `gorm:"type:varchar(255);not null;uniqueIndex"` // Opaque session identifier.
	UserID    uint64 `gorm:"not null;index"`                         // Signed-in user.
	Username  string `gorm:"type:varchar(100);not null"`             // Username at login.
	IPAddress string `gorm:"type:varchar(45)"`                       // Client IP.
	UserAgent string `gorm:"type:varchar(255)"`                      // Client user agent.

	LoginTime time.Time `gorm:"not null;index"` // Login timestamp.
}

// SessionHistory is the permanent record of a login session.
type SessionHistory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID     uint64     `gorm:"not null;index"`          // Signed-in user.
	SessionID  string     `gorm:"type:varchar(255);index"` // Matching active session id.
	LoginTime  time.Time  `gorm:"not null"`                // Login timestamp.
	LogoutTime *time.Time `gorm:"index"`                   // Logout timestamp, nil while active.
	IPAddress  string     `gorm:"type:varchar(45)"`        // Client IP.
	UserAgent  string     `gorm:"type:varchar(255)"`       // Client user agent.

	Details datatypes.JSON `gorm:"type:jsonb"` // How the session ended.
}
