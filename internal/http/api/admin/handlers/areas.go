package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

// AreaHandler manages areas.
type AreaHandler struct {
	db *gorm.DB
}

// NewAreaHandler constructs an AreaHandler.
func NewAreaHandler(db *gorm.DB) *AreaHandler {
	return &AreaHandler{db: db}
}

// Details returns every area with its stations and managers.
func (h *AreaHandler) Details(c *gin.Context) {
	var rows []models.Area
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Stations", func(tx *gorm.DB) *gorm.DB { return tx.Order("station_id ASC") }).
		Preload("Managers").
		Order("name ASC").
		Find(&rows).Error
	if errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list areas failed")
		return
	}
	out := make([]schema.Area, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromArea(row))
	}
	c.JSON(http.StatusOK, out)
}

// areaRequest defines the request body for area create and update.
// Nil lists are left unchanged on update.
type areaRequest struct {
	Name       *string   `json:"name"`
	StationIDs *[]uint64 `json:"station_ids"`
	ManagerIDs *[]uint64 `json:"manager_ids"`
}

// Create creates an area, optionally with its stations and managers.
func (h *AreaHandler) Create(c *gin.Context) {
	var body areaRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		portalhttp.Error(c, http.StatusBadRequest, "missing name")
		return
	}
	area := models.Area{Name: strings.TrimSpace(*body.Name)}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUnique := checkAreaUnique(tx, 0, area.Name); errUnique != nil {
			return errUnique
		}
		if errCreate := tx.Create(&area).Error; errCreate != nil {
			return errCreate
		}
		return applyAreaLists(tx, &area, body)
	})
	if errTx != nil {
		writeError(c, errTx, "create area failed")
		return
	}
	respondArea(c, h.db, area.ID, http.StatusCreated)
}

// Update renames an area and replaces the provided station and manager lists.
func (h *AreaHandler) Update(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body areaRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		area, errArea := findArea(tx, id)
		if errArea != nil {
			return errArea
		}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return badRequestf("name cannot be empty")
			}
			if errUnique := checkAreaUnique(tx, area.ID, name); errUnique != nil {
				return errUnique
			}
			if errUpdate := tx.Model(area).Update("name", name).Error; errUpdate != nil {
				return errUpdate
			}
		}
		return applyAreaLists(tx, area, body)
	})
	if errTx != nil {
		writeError(c, errTx, "update area failed")
		return
	}
	respondArea(c, h.db, id, http.StatusOK)
}

// Delete removes an area, releasing its stations and managers.
func (h *AreaHandler) Delete(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		area, errArea := findArea(tx, id)
		if errArea != nil {
			return errArea
		}
		if errRelease := tx.Model(&models.Station{}).Where("area_id = ?", id).Update("area_id", nil).Error; errRelease != nil {
			return errRelease
		}
		if errClear := tx.Model(area).Association("Managers").Clear(); errClear != nil {
			return errClear
		}
		return tx.Delete(area).Error
	})
	if errTx != nil {
		writeError(c, errTx, "delete area failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func applyAreaLists(tx *gorm.DB, area *models.Area, body areaRequest) error {
	if body.StationIDs != nil {
		if errStations := replaceAreaStations(tx, area.ID, *body.StationIDs); errStations != nil {
			return errStations
		}
	}
	if body.ManagerIDs != nil {
		if errManagers := replaceAreaManagers(tx, area, *body.ManagerIDs); errManagers != nil {
			return errManagers
		}
	}
	return nil
}

func checkAreaUnique(tx *gorm.DB, selfID uint64, name string) error {
	var count int64
	if errCount := tx.Model(&models.Area{}).Where("name = ? AND id <> ?", name, selfID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return badRequestf("Area name already exists")
	}
	return nil
}
