package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dbutil "github.com/router-for-me/StationPortal/internal/db"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

// Station search bounds.
const (
	minSearchLength = 2
	searchLimit     = 20
)

// LookupHandler serves lookup tables and station suggestions.
type LookupHandler struct {
	db *gorm.DB
}

// NewLookupHandler constructs a LookupHandler.
func NewLookupHandler(db *gorm.DB) *LookupHandler {
	return &LookupHandler{db: db}
}

// AMControls lists AM control entries.
func (h *LookupHandler) AMControls(c *gin.Context) {
	var rows []models.AMControl
	if errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list am controls failed")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{"id": row.ID, "name": row.Name, "email": row.Email})
	}
	c.JSON(http.StatusOK, out)
}

// Supporters lists supporter entries.
func (h *LookupHandler) Supporters(c *gin.Context) {
	var rows []models.Supporter
	if errFind := h.db.WithContext(c.Request.Context()).Order("supporter_name ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list supporters failed")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{"id": row.ID, "supporter_name": row.SupporterName, "email": row.Email})
	}
	c.JSON(http.StatusOK, out)
}

// Provinces lists province entries.
func (h *LookupHandler) Provinces(c *gin.Context) {
	var rows []models.Province
	if errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list provinces failed")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{"id": row.ID, "name": row.Name, "description": row.Description})
	}
	c.JSON(http.StatusOK, out)
}

// stationSuggestion is one search hit.
type stationSuggestion struct {
	StationID   string `json:"station_id"`
	StationName string `json:"station_name"`
}

// SearchStations suggests stations whose id or name contains q.
// Queries shorter than two characters return an empty list.
func (h *LookupHandler) SearchStations(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if len([]rune(term)) < minSearchLength {
		c.JSON(http.StatusOK, []stationSuggestion{})
		return
	}
	cond, args := dbutil.MatchAny(h.db, term, "station_id", "station_name")
	var rows []stationSuggestion
	errFind := h.db.WithContext(c.Request.Context()).
		Model(&models.Station{}).
		Select("station_id", "station_name").
		Where(cond, args...).
		Order("station_id ASC").
		Limit(searchLimit).
		Scan(&rows).Error
	if errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "search stations failed")
		return
	}
	if rows == nil {
		rows = []stationSuggestion{}
	}
	c.JSON(http.StatusOK, rows)
}
