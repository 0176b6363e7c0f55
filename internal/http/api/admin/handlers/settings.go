package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler reads and writes DB-backed runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns every editable key with its stored value, null when unset.
func (h *SettingsHandler) List(c *gin.Context) {
	out := make([]gin.H, 0, len(settings.Keys))
	for _, key := range settings.Keys {
		value, ok := settings.Value(key)
		if !ok {
			value = json.RawMessage("null")
		}
		out = append(out, gin.H{"key": key, "value": value})
	}
	c.JSON(http.StatusOK, gin.H{"settings": out, "updated_at": settings.UpdatedAt()})
}

// updateSettingRequest carries the new JSON value.
type updateSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// Update stores one setting and refreshes the snapshot.
func (h *SettingsHandler) Update(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if !settings.KnownKey(key) {
		portalhttp.Error(c, http.StatusNotFound, "Unknown setting")
		return
	}
	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || len(body.Value) == 0 {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if key == settings.SessionRetentionDaysKey {
		var days int
		if errDays := json.Unmarshal(body.Value, &days); errDays != nil || days <= 0 {
			portalhttp.Error(c, http.StatusBadRequest, "value must be a positive integer")
			return
		}
	}
	if errPut := settings.Put(c.Request.Context(), h.db, key, body.Value); errPut != nil {
		log.WithError(errPut).WithField("key", key).Error("save setting failed")
		portalhttp.Error(c, http.StatusInternalServerError, "save setting failed")
		return
	}
	value, _ := settings.Value(key)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}
