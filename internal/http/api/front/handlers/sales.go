package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/report"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SalesHandler serves role-scoped sales lines.
type SalesHandler struct {
	db *gorm.DB
}

// NewSalesHandler constructs a SalesHandler.
func NewSalesHandler(db *gorm.DB) *SalesHandler {
	return &SalesHandler{db: db}
}

// Sales returns the sales lines of a year visible to the caller,
// optionally narrowed by start_date and end_date.
func (h *SalesHandler) Sales(c *gin.Context) {
	year, ok := parseYear(c.Param("year"))
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "Invalid year format.")
		return
	}
	start, end, errRange := report.ParseRange(c.Query("start_date"), c.Query("end_date"))
	if errRange != nil {
		portalhttp.Error(c, http.StatusBadRequest, DateRangeMessage(errRange))
		return
	}

	ctx := c.Request.Context()
	scope, errScope := report.ScopeFor(ctx, h.db, portalhttp.CurrentUser(c), false)
	if errScope != nil {
		log.WithError(errScope).Error("resolve sales scope failed")
		portalhttp.Error(c, http.StatusInternalServerError, "load sales failed")
		return
	}
	q, errQuery := report.YearQuery(scope, year, 0, 0)
	if errQuery != nil {
		portalhttp.Error(c, http.StatusBadRequest, errQuery.Error())
		return
	}
	q.IDType = strings.TrimSpace(c.Query("id_type"))
	sales, errLoad := report.LoadSales(ctx, h.db, q.Narrow(start, end))
	if errLoad != nil {
		log.WithError(errLoad).WithField("year", year).Error("load sales failed")
		portalhttp.Error(c, http.StatusInternalServerError, "load sales failed")
		return
	}
	c.JSON(http.StatusOK, sales)
}
