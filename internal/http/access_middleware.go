package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/access"
	"github.com/router-for-me/StationPortal/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// APIKeyAuthenticator authenticates a request for one API key scope.
type APIKeyAuthenticator interface {
	Authenticate(ctx context.Context, r *http.Request, scope string) (*access.Result, error)
}

// APIKeyMiddleware authenticates X-API-Key for scope and injects the key owner.
func APIKeyMiddleware(authenticator APIKeyAuthenticator, scope string, m *metrics.Collectors) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticator == nil {
			Abort(c, http.StatusInternalServerError, "Authentication service error")
			return
		}

		result, authErr := authenticator.Authenticate(c.Request.Context(), c.Request, scope)
		switch {
		case authErr == nil:
			m.RecordAPIKeyAuth("ok")
		case errors.Is(authErr, access.ErrNoCredentials):
			m.RecordAPIKeyAuth("missing")
			Abort(c, http.StatusUnauthorized, "API Key required")
			return
		case errors.Is(authErr, access.ErrInvalidCredential):
			m.RecordAPIKeyAuth("invalid")
			Abort(c, http.StatusUnauthorized, "Invalid or inactive API Key")
			return
		case errors.Is(authErr, access.ErrScopeDenied):
			m.RecordAPIKeyAuth("forbidden")
			Abort(c, http.StatusForbidden, "API Key does not have permission for this resource")
			return
		default:
			m.RecordAPIKeyAuth("error")
			log.WithError(authErr).Error("api key middleware error")
			Abort(c, http.StatusInternalServerError, "Authentication service error")
			return
		}

		c.Set(ContextAPIKeyID, result.KeyID)
		if result.User != nil {
			c.Set(ContextUserID, result.User.ID)
			c.Set(ContextUser, result.User)
		}
		c.Next()
	}
}
