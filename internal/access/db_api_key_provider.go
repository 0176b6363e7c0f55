package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

// HeaderAPIKey is the request header carrying an external API key.
const HeaderAPIKey = "X-API-Key"

// Authentication failures returned by DBAPIKeyProvider.
var (
	// ErrNoCredentials indicates the request carried no API key.
	ErrNoCredentials = errors.New("api key required")
	// ErrInvalidCredential indicates the key is unknown, inactive or its owner is disabled.
	ErrInvalidCredential = errors.New("invalid or inactive api key")
	// ErrScopeDenied indicates the key is valid but issued for another scope.
	ErrScopeDenied = errors.New("api key scope denied")
)

// Result describes an authenticated API key.
type Result struct {
	KeyID string
	Scope string
	User  *models.User // Key owner with role, areas and stations loaded; nil for unowned keys.
}

// DBAPIKeyProvider authenticates requests using API keys stored in the database.
type DBAPIKeyProvider struct {
	db     *gorm.DB
	header string
	now    func() time.Time
}

// NewDBAPIKeyProvider returns a provider reading the X-API-Key header.
func NewDBAPIKeyProvider(db *gorm.DB) *DBAPIKeyProvider {
	return &DBAPIKeyProvider{
		db:     db,
		header: HeaderAPIKey,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates the request API key against scope and stamps its last use.
func (p *DBAPIKeyProvider) Authenticate(ctx context.Context, r *http.Request, scope string) (*Result, error) {
	if p == nil || p.db == nil || r == nil {
		return nil, errors.New("db api key provider: not configured")
	}

	token := extractToken(r, p.header)
	if token == "" {
		return nil, ErrNoCredentials
	}

	var apiKey models.APIKey
	err := p.db.WithContext(ctx).
		Preload("User.Role.Permissions").
		Preload("User.ManagedAreas").
		Preload("User.OwnedStations").
		Where(&models.APIKey{Key: token}).
		Where("is_active = ?", true).
		First(&apiKey).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrInvalidCredential
	default:
		return nil, fmt.Errorf("db api key provider: query failed: %w", err)
	}

	if apiKey.User != nil && !apiKey.User.IsActive {
		return nil, ErrInvalidCredential
	}
	if apiKey.Scope != scope {
		return nil, ErrScopeDenied
	}

	now := p.now()
	_ = p.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", apiKey.ID).
		Update("last_used_at", &now).Error

	return &Result{KeyID: apiKey.ID, Scope: apiKey.Scope, User: apiKey.User}, nil
}

// extractToken reads the key from the configured header.
func extractToken(r *http.Request, header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		header = HeaderAPIKey
	}
	return strings.TrimSpace(r.Header.Get(header))
}
