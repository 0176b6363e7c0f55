package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/config"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/metrics"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/security"
	"github.com/router-for-me/StationPortal/internal/sessions"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler handles user authentication endpoints.
type AuthHandler struct {
	db       *gorm.DB
	jwtCfg   config.JWTConfig
	sessions *sessions.Service
	metrics  *metrics.Collectors
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, svc *sessions.Service, m *metrics.Collectors) *AuthHandler {
	if svc == nil {
		svc = sessions.NewService(db)
	}
	return &AuthHandler{db: db, jwtCfg: jwtCfg, sessions: svc, metrics: m}
}

// tokenRequest is the OAuth2 password grant form.
type tokenRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// Token authenticates form credentials and issues a bearer token.
func (h *AuthHandler) Token(c *gin.Context) {
	var body tokenRequest
	if errBind := c.ShouldBind(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid form")
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		h.rejectLogin(c)
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			h.rejectLogin(c)
			return
		}
		log.WithError(errFind).Error("login lookup failed")
		portalhttp.Error(c, http.StatusInternalServerError, "query failed")
		return
	}
	if !security.CheckPassword(user.HashedPassword, body.Password) {
		h.rejectLogin(c)
		return
	}
	if !user.IsActive {
		h.metrics.RecordLogin(false)
		portalhttp.Error(c, http.StatusBadRequest, "Inactive user")
		return
	}

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Username, user.TokenVersion, h.jwtCfg.Expiry())
	if errToken != nil {
		log.WithError(errToken).Error("issue token failed")
		portalhttp.Error(c, http.StatusInternalServerError, "generate token failed")
		return
	}
	if _, errRecord := h.sessions.RecordLogin(c.Request.Context(), &user, c.ClientIP(), c.Request.UserAgent()); errRecord != nil {
		log.WithError(errRecord).WithField("user_id", user.ID).Warn("record login session failed")
	}
	h.metrics.RecordLogin(true)
	log.WithFields(log.Fields{"user_id": user.ID, "ip": c.ClientIP()}).Info("user logged in")
	c.JSON(http.StatusOK, schema.Token{AccessToken: token, TokenType: "bearer"})
}

func (h *AuthHandler) rejectLogin(c *gin.Context) {
	h.metrics.RecordLogin(false)
	c.Header("WWW-Authenticate", "Bearer")
	portalhttp.Error(c, http.StatusUnauthorized, "Incorrect username or password")
}

// Me returns the signed-in user with role, permissions and assignments.
func (h *AuthHandler) Me(c *gin.Context) {
	user := portalhttp.CurrentUser(c)
	if user == nil {
		portalhttp.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, schema.FromUser(*user))
}

// Logout revokes the caller's tokens and closes their sessions.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := portalhttp.UserID(c)
	if _, errEnd := h.sessions.EndAll(c.Request.Context(), userID, sessions.ReasonLogout); errEnd != nil {
		log.WithError(errEnd).WithField("user_id", userID).Error("logout failed")
		portalhttp.Error(c, http.StatusInternalServerError, "logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
