package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Token authentication failures.
var (
	// ErrInvalidCredentials covers bad, expired, revoked or orphaned tokens.
	ErrInvalidCredentials = errors.New("could not validate credentials")
	// ErrInactiveUser indicates the token belongs to a deactivated user.
	ErrInactiveUser = errors.New("inactive user")
)

// LoadUser loads a user with role permissions, managed areas and owned stations.
func LoadUser(ctx context.Context, db *gorm.DB, id uint64) (*models.User, error) {
	var user models.User
	errFind := db.WithContext(ctx).
		Preload("Role.Permissions").
		Preload("ManagedAreas").
		Preload("OwnedStations").
		First(&user, id).Error
	if errFind != nil {
		return nil, errFind
	}
	return &user, nil
}

// AuthenticateToken validates an access token and returns its user.
// Tokens issued before the user's last token_version bump are rejected.
func AuthenticateToken(ctx context.Context, db *gorm.DB, secret, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCredentials
	}
	claims, errJWT := security.ParseToken(secret, token)
	if errJWT != nil {
		return nil, ErrInvalidCredentials
	}
	user, errFind := LoadUser(ctx, db, claims.UserID)
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errFind
	}
	if user.Username != claims.Username() || user.TokenVersion != claims.TokenVersion {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// UserAuthMiddleware validates bearer JWTs and loads the user into context.
func UserAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader {
			c.Header("WWW-Authenticate", "Bearer")
			Abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, errAuth := AuthenticateToken(c.Request.Context(), db, jwtCfg.Secret, token)
		switch {
		case errAuth == nil:
		case errors.Is(errAuth, ErrInactiveUser):
			Abort(c, http.StatusBadRequest, "Inactive user")
			return
		case errors.Is(errAuth, ErrInvalidCredentials):
			c.Header("WWW-Authenticate", "Bearer")
			Abort(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		default:
			log.WithError(errAuth).Error("user auth middleware error")
			Abort(c, http.StatusInternalServerError, "Authentication service error")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequirePermission rejects users holding none of the required permissions.
func RequirePermission(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if !authz.HasPermission(CurrentUser(c), required...) {
			Abort(c, http.StatusForbidden, "Access denied")
			return
		}
		c.Next()
	}
}
