package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/security"
	"gorm.io/gorm"
)

// APIKeyHandler issues and manages external API keys.
type APIKeyHandler struct {
	db *gorm.DB
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(db *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: db}
}

// List returns all keys with masked secrets, newest first.
func (h *APIKeyHandler) List(c *gin.Context) {
	var rows []models.APIKey
	if errFind := h.db.WithContext(c.Request.Context()).Preload("User").Order("created_at DESC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list api keys failed")
		return
	}
	out := make([]schema.APIKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromAPIKey(row, false))
	}
	c.JSON(http.StatusOK, out)
}

// createAPIKeyRequest defines the request body for key creation.
type createAPIKeyRequest struct {
	Name   *string `json:"name"`
	Scope  string  `json:"scope"`
	UserID *uint64 `json:"user_id"`
}

// Create issues a key. The secret is only returned in this response.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var body createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	scope := strings.TrimSpace(body.Scope)
	if !models.ValidScope(scope) {
		portalhttp.Error(c, http.StatusBadRequest, "Invalid scope. Must be one of: "+strings.Join(models.APIKeyScopes, ", "))
		return
	}
	id, secret, errGen := security.GenerateAPIKey()
	if errGen != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "generate api key failed")
		return
	}
	key := models.APIKey{ID: id, Key: secret, Scope: scope, IsActive: true, UserID: body.UserID}
	if body.Name != nil {
		if name := strings.TrimSpace(*body.Name); name != "" {
			key.Name = &name
		}
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if body.UserID != nil {
			var owner models.User
			if errFind := tx.First(&owner, *body.UserID).Error; errFind != nil {
				if errors.Is(errFind, gorm.ErrRecordNotFound) {
					return badRequestf("User not found")
				}
				return errFind
			}
			key.User = &owner
		}
		return tx.Omit("User").Create(&key).Error
	})
	if errTx != nil {
		writeError(c, errTx, "create api key failed")
		return
	}
	c.JSON(http.StatusCreated, schema.FromAPIKey(key, true))
}

// updateAPIKeyRequest defines the request body for key renames.
type updateAPIKeyRequest struct {
	Name *string `json:"name"`
}

// Update renames a key.
func (h *APIKeyHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body updateAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	key, errFind := h.find(c, id)
	if errFind != nil {
		writeError(c, errFind, "query api key failed")
		return
	}
	var name any
	if body.Name != nil && strings.TrimSpace(*body.Name) != "" {
		trimmed := strings.TrimSpace(*body.Name)
		name = trimmed
		key.Name = &trimmed
	} else {
		key.Name = nil
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{}).Where("id = ?", id).Update("name", name).Error; errUpdate != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "update api key failed")
		return
	}
	c.JSON(http.StatusOK, schema.FromAPIKey(*key, false))
}

// ToggleStatus flips a key between active and inactive.
func (h *APIKeyHandler) ToggleStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	key, errFind := h.find(c, id)
	if errFind != nil {
		writeError(c, errFind, "query api key failed")
		return
	}
	key.IsActive = !key.IsActive
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{}).Where("id = ?", id).Update("is_active", key.IsActive).Error; errUpdate != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "update api key failed")
		return
	}
	c.JSON(http.StatusOK, schema.FromAPIKey(*key, false))
}

// Delete removes a key.
func (h *APIKeyHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res := h.db.WithContext(c.Request.Context()).Where("id = ?", id).Delete(&models.APIKey{})
	if res.Error != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "delete api key failed")
		return
	}
	if res.RowsAffected == 0 {
		portalhttp.Error(c, http.StatusNotFound, "API Key not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIKeyHandler) find(c *gin.Context, id string) (*models.APIKey, error) {
	if id == "" {
		return nil, badRequestf("invalid id")
	}
	var key models.APIKey
	if errFind := h.db.WithContext(c.Request.Context()).Preload("User").First(&key, "id = ?", id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, notFoundf("API Key not found")
		}
		return nil, errFind
	}
	return &key, nil
}
