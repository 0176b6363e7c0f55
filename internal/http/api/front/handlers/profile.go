package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/security"
	"gorm.io/gorm"
)

// ProfileHandler handles self-service profile endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword verifies the old password, stores the new one and revokes
// every token issued before, including the caller's.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	user := portalhttp.CurrentUser(c)
	if user == nil {
		portalhttp.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !security.CheckPassword(user.HashedPassword, body.OldPassword) {
		portalhttp.Error(c, http.StatusBadRequest, "Incorrect password")
		return
	}
	if errValidate := security.ValidatePassword(body.NewPassword); errValidate != nil {
		portalhttp.Error(c, http.StatusBadRequest, errValidate.Error())
		return
	}
	hash, errHash := security.HashPassword(body.NewPassword)
	if errHash != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "hash password failed")
		return
	}
	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"hashed_password": hash,
		"token_version":   gorm.Expr("token_version + 1"),
	}).Error
	if errUpdate != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "update password failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
