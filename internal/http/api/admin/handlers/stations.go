package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/stationinfo"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxStationIDLength = 11
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// StationHandler serves station lists and station-info maintenance.
type StationHandler struct {
	db *gorm.DB
}

// NewStationHandler constructs a StationHandler.
func NewStationHandler(db *gorm.DB) *StationHandler {
	return &StationHandler{db: db}
}

// List returns every station with its area and owners.
func (h *StationHandler) List(c *gin.Context) {
	var rows []models.Station
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Area").Preload("Owners").Order("station_id ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list stations failed")
		return
	}
	out := make([]schema.Station, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromStation(row))
	}
	c.JSON(http.StatusOK, out)
}

// InfoList returns station-info rows filtered, searched and sorted by the query string.
func (h *StationHandler) InfoList(c *gin.Context) {
	rows, errRows := h.queryRows(c)
	if errRows != nil {
		writeError(c, errRows, "list station info failed")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Export writes the filtered station-info rows as xlsx (default) or csv.
func (h *StationHandler) Export(c *gin.Context) {
	rows, errRows := h.queryRows(c)
	if errRows != nil {
		writeError(c, errRows, "export station info failed")
		return
	}
	var buf bytes.Buffer
	switch strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "xlsx"))) {
	case "xlsx":
		if errWrite := stationinfo.WriteXLSX(&buf, rows); errWrite != nil {
			log.WithError(errWrite).Error("station info xlsx export failed")
			portalhttp.Error(c, http.StatusInternalServerError, "export station info failed")
			return
		}
		c.Header("Content-Disposition", `attachment; filename="stations.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	case "csv":
		if errWrite := stationinfo.WriteCSV(&buf, rows); errWrite != nil {
			log.WithError(errWrite).Error("station info csv export failed")
			portalhttp.Error(c, http.StatusInternalServerError, "export station info failed")
			return
		}
		c.Header("Content-Disposition", `attachment; filename="stations.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	default:
		portalhttp.Error(c, http.StatusBadRequest, "format must be xlsx or csv")
	}
}

func (h *StationHandler) queryRows(c *gin.Context) ([]stationinfo.Row, error) {
	q := stationinfo.Query{
		Search:     c.Query("q"),
		ProvinceID: strings.TrimSpace(c.Query("province_id")),
	}
	for param, dst := range map[string]**uint64{"supporter_id": &q.SupporterID, "am_control_id": &q.AMControlID} {
		raw := strings.TrimSpace(c.Query(param))
		if raw == "" {
			continue
		}
		v, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			return nil, badRequestf("invalid %s", param)
		}
		*dst = &v
	}
	keys, errSort := parseSortKeys(c.Query("sort"), c.Query("dir"))
	if errSort != nil {
		return nil, errSort
	}
	q.Sort = keys

	var stations []models.Station
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Province").
		Preload("Supporter").
		Preload("AMControlInfo").
		Order("id ASC").
		Find(&stations).Error
	if errFind != nil {
		return nil, errFind
	}
	rows := make([]stationinfo.Row, 0, len(stations))
	for _, s := range stations {
		rows = append(rows, stationinfo.FromModel(s))
	}
	return stationinfo.Apply(rows, q), nil
}

// parseSortKeys reads "key1,-key2" style sort lists. A leading "-" or dir=desc
// (applied to keys without a prefix) sorts descending.
func parseSortKeys(sortParam, dir string) ([]stationinfo.SortKey, error) {
	sortParam = strings.TrimSpace(sortParam)
	if sortParam == "" {
		return nil, nil
	}
	defaultDesc := strings.EqualFold(strings.TrimSpace(dir), "desc")
	var out []stationinfo.SortKey
	for _, part := range strings.Split(sortParam, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := stationinfo.SortKey{Key: part, Desc: defaultDesc}
		if strings.HasPrefix(part, "-") {
			key = stationinfo.SortKey{Key: strings.TrimPrefix(part, "-"), Desc: true}
		}
		if !stationinfo.ValidSortKey(key.Key) {
			return nil, badRequestf("invalid sort key %s", key.Key)
		}
		out = append(out, key)
	}
	return out, nil
}

// InfoGet returns one station-info row.
func (h *StationHandler) InfoGet(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	h.respondInfo(c, id, http.StatusOK)
}

// stationInfoRequest defines the request body for station-info create and update.
type stationInfoRequest struct {
	StationID   *string `json:"station_id"`
	StationName *string `json:"station_name"`
	AMControl   *string `json:"am_control"`
	ProvinceID  *string `json:"province_id"`
	SupporterID *uint64 `json:"supporter_id"`
	AMControlID *uint64 `json:"am_control_id"`
	Active      *int    `json:"active"`
}

// InfoCreate creates a station.
func (h *StationHandler) InfoCreate(c *gin.Context) {
	var body stationInfoRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if body.StationID == nil {
		portalhttp.Error(c, http.StatusBadRequest, "missing station_id")
		return
	}
	station := models.Station{StationID: strings.TrimSpace(*body.StationID)}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errValidate := validateStationID(tx, 0, station.StationID); errValidate != nil {
			return errValidate
		}
		if body.StationName != nil {
			station.StationName = strings.TrimSpace(*body.StationName)
		}
		if body.AMControl != nil {
			station.AMControl = strings.TrimSpace(*body.AMControl)
		}
		station.ProvinceID = body.ProvinceID
		station.SupporterID = body.SupporterID
		station.AMControlID = body.AMControlID
		if body.Active != nil {
			if errActive := validateActive(*body.Active); errActive != nil {
				return errActive
			}
			station.Active = body.Active
		}
		if errLookups := validateLookups(tx, body); errLookups != nil {
			return errLookups
		}
		if errCreate := tx.Create(&station).Error; errCreate != nil {
			return errCreate
		}
		if body.Active != nil && *body.Active == 0 {
			return tx.Model(&station).Update("active", 0).Error
		}
		return nil
	})
	if errTx != nil {
		writeError(c, errTx, "create station failed")
		return
	}
	h.respondInfo(c, station.ID, http.StatusCreated)
}

// InfoUpdate modifies station fields.
func (h *StationHandler) InfoUpdate(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body stationInfoRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if errFind := tx.First(&station, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Station not found")
			}
			return errFind
		}
		updates := map[string]any{}
		if body.StationID != nil {
			stationID := strings.TrimSpace(*body.StationID)
			if errValidate := validateStationID(tx, station.ID, stationID); errValidate != nil {
				return errValidate
			}
			updates["station_id"] = stationID
		}
		if body.StationName != nil {
			updates["station_name"] = strings.TrimSpace(*body.StationName)
		}
		if body.AMControl != nil {
			updates["am_control"] = strings.TrimSpace(*body.AMControl)
		}
		if body.ProvinceID != nil {
			updates["province_id"] = body.ProvinceID
		}
		if body.SupporterID != nil {
			updates["supporter_id"] = body.SupporterID
		}
		if body.AMControlID != nil {
			updates["am_control_id"] = body.AMControlID
		}
		if body.Active != nil {
			if errActive := validateActive(*body.Active); errActive != nil {
				return errActive
			}
			updates["active"] = *body.Active
		}
		if errLookups := validateLookups(tx, body); errLookups != nil {
			return errLookups
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&station).Updates(updates).Error
	})
	if errTx != nil {
		writeError(c, errTx, "update station failed")
		return
	}
	h.respondInfo(c, id, http.StatusOK)
}

// InfoDelete removes a station and its owner links.
func (h *StationHandler) InfoDelete(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if errFind := tx.First(&station, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Station not found")
			}
			return errFind
		}
		if errClear := tx.Model(&station).Association("Owners").Clear(); errClear != nil {
			return errClear
		}
		return tx.Delete(&station).Error
	})
	if errTx != nil {
		writeError(c, errTx, "delete station failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StationHandler) respondInfo(c *gin.Context, id uint64, status int) {
	var station models.Station
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Province").
		Preload("Supporter").
		Preload("AMControlInfo").
		First(&station, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			portalhttp.Error(c, http.StatusNotFound, "Station not found")
			return
		}
		portalhttp.Error(c, http.StatusInternalServerError, "load station failed")
		return
	}
	c.JSON(status, stationinfo.FromModel(station))
}

func validateStationID(tx *gorm.DB, selfID uint64, stationID string) error {
	if stationID == "" {
		return badRequestf("station_id cannot be empty")
	}
	if len(stationID) > maxStationIDLength {
		return badRequestf("station_id must be at most %d characters", maxStationIDLength)
	}
	var count int64
	if errCount := tx.Model(&models.Station{}).Where("station_id = ? AND id <> ?", stationID, selfID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return badRequestf("Station %s already exists", stationID)
	}
	return nil
}

func validateActive(active int) error {
	if active != 0 && active != 1 {
		return badRequestf("active must be 0 or 1")
	}
	return nil
}

func validateLookups(tx *gorm.DB, body stationInfoRequest) error {
	if body.ProvinceID != nil && *body.ProvinceID != "" {
		if errFind := tx.Select("id").First(&models.Province{}, "id = ?", *body.ProvinceID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return badRequestf("Province not found")
			}
			return errFind
		}
	}
	if body.SupporterID != nil {
		if errFind := tx.Select("id").First(&models.Supporter{}, *body.SupporterID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return badRequestf("Supporter not found")
			}
			return errFind
		}
	}
	if body.AMControlID != nil {
		if errFind := tx.Select("id").First(&models.AMControl{}, *body.AMControlID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return badRequestf("AM control not found")
			}
			return errFind
		}
	}
	return nil
}
