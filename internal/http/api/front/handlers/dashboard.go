package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/report"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DashboardHandler serves dashboard KPIs and chart series.
type DashboardHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get aggregates the caller's active-station sales. Query: year (default current),
// month, day, id_type.
func (h *DashboardHandler) Get(c *gin.Context) {
	year := h.now().Year()
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		parsed, ok := parseYear(raw)
		if !ok {
			portalhttp.Error(c, http.StatusBadRequest, "invalid year")
			return
		}
		year = parsed
	}
	month, errMonth := optionalInt(c.Query("month"))
	day, errDay := optionalInt(c.Query("day"))
	if errMonth != nil || errDay != nil {
		portalhttp.Error(c, http.StatusBadRequest, "month and day must be numbers")
		return
	}
	if day != 0 && month == 0 {
		portalhttp.Error(c, http.StatusBadRequest, "day requires month")
		return
	}

	ctx := c.Request.Context()
	scope, errScope := report.ScopeFor(ctx, h.db, portalhttp.CurrentUser(c), true)
	if errScope != nil {
		log.WithError(errScope).Error("resolve dashboard scope failed")
		portalhttp.Error(c, http.StatusInternalServerError, "Could not fetch dashboard data.")
		return
	}
	q, errQuery := report.YearQuery(scope, year, month, day)
	if errQuery != nil {
		portalhttp.Error(c, http.StatusBadRequest, errQuery.Error())
		return
	}
	q.IDType = strings.TrimSpace(c.Query("id_type"))

	total, errCount := report.CountStations(ctx, h.db, scope)
	if errCount != nil {
		log.WithError(errCount).Error("count stations failed")
		portalhttp.Error(c, http.StatusInternalServerError, "Could not fetch dashboard data.")
		return
	}
	sales, errLoad := report.LoadSales(ctx, h.db, q)
	if errLoad != nil {
		log.WithError(errLoad).Error("load dashboard sales failed")
		portalhttp.Error(c, http.StatusInternalServerError, "Could not fetch dashboard data.")
		return
	}
	c.JSON(http.StatusOK, report.Summarize(sales, total))
}
