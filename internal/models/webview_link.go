package models

import "time"

// WebViewLink is an embeddable external dashboard link.
type WebViewLink struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title    string `gorm:"type:varchar(255);not null"` // Display title.
	URL      string `gorm:"type:text;not null"`         // Target URL.
	IsActive bool   `gorm:"not null;default:true"`      // Listed to viewers when true.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName keeps the historical table name.
func (WebViewLink) TableName() string { return "webview_links" }
