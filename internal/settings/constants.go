package settings

// DB-backed setting keys and their defaults.
const (
	// SiteNameKey is the display name of the portal.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is used until SITE_NAME is stored.
	DefaultSiteName = "Station Portal"
	// SessionRetentionDaysKey overrides how many days closed session history is kept.
	SessionRetentionDaysKey = "SESSION_HISTORY_RETENTION_DAYS"
)

// Keys lists the settings administrators may edit.
var Keys = []string{SiteNameKey, SessionRetentionDaysKey}

// KnownKey reports whether key is an editable setting.
func KnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
