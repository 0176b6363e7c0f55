package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

// AssignmentHandler replaces area and station-owner assignments.
// The server rejects any assignment that would give a station a second area or owner.
type AssignmentHandler struct {
	db *gorm.DB
}

// NewAssignmentHandler constructs an AssignmentHandler.
func NewAssignmentHandler(db *gorm.DB) *AssignmentHandler {
	return &AssignmentHandler{db: db}
}

type stationIDsRequest struct {
	StationIDs []uint64 `json:"station_ids"`
}

type managerIDsRequest struct {
	ManagerIDs []uint64 `json:"manager_ids"`
}

type ownerIDsRequest struct {
	OwnerIDs []uint64 `json:"owner_ids"`
}

// SetAreaStations makes the listed stations the complete station set of an area.
func (h *AssignmentHandler) SetAreaStations(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body stationIDsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		area, errArea := findArea(tx, id)
		if errArea != nil {
			return errArea
		}
		return replaceAreaStations(tx, area.ID, body.StationIDs)
	})
	if errTx != nil {
		writeError(c, errTx, "update area stations failed")
		return
	}
	respondArea(c, h.db, id, http.StatusOK)
}

// SetAreaManagers makes the listed users the complete manager set of an area.
func (h *AssignmentHandler) SetAreaManagers(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body managerIDsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		area, errArea := findArea(tx, id)
		if errArea != nil {
			return errArea
		}
		return replaceAreaManagers(tx, area, body.ManagerIDs)
	})
	if errTx != nil {
		writeError(c, errTx, "update area managers failed")
		return
	}
	respondArea(c, h.db, id, http.StatusOK)
}

// SetUserStations makes the listed stations the complete owned set of a user.
func (h *AssignmentHandler) SetUserStations(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body stationIDsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("User not found")
			}
			return errFind
		}
		ids := uniqueIDs(body.StationIDs)
		stations := []models.Station{}
		if len(ids) > 0 {
			if errFind := tx.Preload("Owners").Where("id IN ?", ids).Find(&stations).Error; errFind != nil {
				return errFind
			}
			if len(stations) != len(ids) {
				return notFoundf("Station not found")
			}
			for _, s := range stations {
				for _, owner := range s.Owners {
					if owner.ID != user.ID {
						return conflictf("Station %s is already assigned to %s", s.StationID, owner.Username)
					}
				}
			}
		}
		return replaceAssociation(tx, &user, "OwnedStations", stations)
	})
	if errTx != nil {
		writeError(c, errTx, "update user stations failed")
		return
	}
	user, errLoad := portalhttp.LoadUser(c.Request.Context(), h.db, id)
	if errLoad != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "load user failed")
		return
	}
	c.JSON(http.StatusOK, schema.FromUser(*user))
}

// SetStationOwners makes the listed users the complete owner set of a station.
// A station has at most one owner; an empty list releases it.
func (h *AssignmentHandler) SetStationOwners(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body ownerIDsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if errFind := tx.Preload("Owners").First(&station, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Station not found")
			}
			return errFind
		}
		ids := uniqueIDs(body.OwnerIDs)
		owners := []models.User{}
		if len(ids) > 0 {
			if errFind := tx.Where("id IN ?", ids).Find(&owners).Error; errFind != nil {
				return errFind
			}
			if len(owners) != len(ids) {
				return notFoundf("User not found")
			}
			if errOwner := checkSingleOwner(station, ids); errOwner != nil {
				return errOwner
			}
		}
		return replaceAssociation(tx, &station, "Owners", owners)
	})
	if errTx != nil {
		writeError(c, errTx, "update station owners failed")
		return
	}
	var station models.Station
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Area").Preload("Owners").First(&station, id).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "load station failed")
		return
	}
	c.JSON(http.StatusOK, schema.FromStation(station))
}

// checkSingleOwner allows at most one owner per station. Ownership only moves
// away from a current owner through an explicit empty owner list.
func checkSingleOwner(station models.Station, ownerIDs []uint64) error {
	for _, current := range station.Owners {
		if len(ownerIDs) > 1 || current.ID != ownerIDs[0] {
			return conflictf("Station %s is already assigned to %s", station.StationID, current.Username)
		}
	}
	if len(ownerIDs) > 1 {
		return conflictf("Station %s can only have one owner", station.StationID)
	}
	return nil
}

func findArea(tx *gorm.DB, id uint64) (*models.Area, error) {
	var area models.Area
	if errFind := tx.First(&area, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, notFoundf("Area not found")
		}
		return nil, errFind
	}
	return &area, nil
}

// replaceAreaStations assigns stationIDs to the area and releases its other stations.
// A listed station already in a different area fails the whole replacement.
func replaceAreaStations(tx *gorm.DB, areaID uint64, stationIDs []uint64) error {
	ids := uniqueIDs(stationIDs)
	if len(ids) > 0 {
		var stations []models.Station
		if errFind := tx.Preload("Area").Where("id IN ?", ids).Find(&stations).Error; errFind != nil {
			return errFind
		}
		if len(stations) != len(ids) {
			return notFoundf("Station not found")
		}
		for _, s := range stations {
			if s.AreaID != nil && *s.AreaID != areaID {
				areaName := ""
				if s.Area != nil {
					areaName = s.Area.Name
				}
				return conflictf("Station %s is already assigned to area %s", s.StationID, areaName)
			}
		}
	}

	release := tx.Model(&models.Station{}).Where("area_id = ?", areaID)
	if len(ids) > 0 {
		release = release.Where("id NOT IN ?", ids)
	}
	if errRelease := release.Update("area_id", nil).Error; errRelease != nil {
		return errRelease
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&models.Station{}).Where("id IN ?", ids).Update("area_id", areaID).Error
}

func replaceAreaManagers(tx *gorm.DB, area *models.Area, managerIDs []uint64) error {
	ids := uniqueIDs(managerIDs)
	managers := []models.User{}
	if len(ids) > 0 {
		if errFind := tx.Where("id IN ?", ids).Find(&managers).Error; errFind != nil {
			return errFind
		}
		if len(managers) != len(ids) {
			return notFoundf("User not found")
		}
	}
	return replaceAssociation(tx, area, "Managers", managers)
}

func respondArea(c *gin.Context, db *gorm.DB, id uint64, status int) {
	var area models.Area
	errFind := db.WithContext(c.Request.Context()).
		Preload("Stations", func(tx *gorm.DB) *gorm.DB { return tx.Order("station_id ASC") }).
		Preload("Managers").
		First(&area, id).Error
	if errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "load area failed")
		return
	}
	c.JSON(status, schema.FromArea(area))
}
