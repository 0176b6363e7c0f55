package models

import "time"

// API key scopes restricting which report category a key may query.
const (
	ScopeExternalSales   = "external_sales"
	ScopeAMSalesReport   = "am_sales_report"
	ScopeAMSummaryReport = "am_summary_report"
)

// APIKeyScopes lists every valid scope.
var APIKeyScopes = []string{ScopeExternalSales, ScopeAMSalesReport, ScopeAMSummaryReport}

// APIKey is a scoped key used by external systems to query reports.
type APIKey struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID.

	Name  *string `gorm:"type:varchar(100)"`                      // Optional display name.
	Key   string  `gorm:"type:varchar(100);not null;uniqueIndex"` // Secret key value.
	Scope string  `gorm:"type:varchar(50);not null;index"`        // One of APIKeyScopes.

	IsActive bool `gorm:"not null;default:true"` // Whether the key is accepted.

	UserID *uint64 `gorm:"index"`             // Optional owning user.
	User   *User   `gorm:"foreignKey:UserID"` // Associated user record.

	LastUsedAt *time.Time // Last successful authentication.
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// ValidScope reports whether scope is a known API key scope.
func ValidScope(scope string) bool {
	for _, s := range APIKeyScopes {
		if s == scope {
			return true
		}
	}
	return false
}
