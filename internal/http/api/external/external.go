// Package external serves reports to systems authenticating with X-API-Key.
package external

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/authz"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	fronthandlers "github.com/router-for-me/StationPortal/internal/http/api/front/handlers"
	"github.com/router-for-me/StationPortal/internal/metrics"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/report"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// defaultSummaryDays is the AM summary window when no dates are given.
const defaultSummaryDays = 30

// RegisterExternalRoutes registers the API key protected report routes.
func RegisterExternalRoutes(r *gin.Engine, db *gorm.DB, authenticator portalhttp.APIKeyAuthenticator, m *metrics.Collectors) {
	if r == nil || db == nil || authenticator == nil {
		return
	}
	h := NewHandler(db)
	group := r.Group("/api/external")
	group.GET("/sales/:year", portalhttp.APIKeyMiddleware(authenticator, models.ScopeExternalSales, m), h.YearSales)
	group.GET("/reports/sales/my-areas", portalhttp.APIKeyMiddleware(authenticator, models.ScopeAMSalesReport, m), h.MySales)
	group.GET("/reports/am-summary", portalhttp.APIKeyMiddleware(authenticator, models.ScopeAMSummaryReport, m), h.AMSummary)
}

// Handler serves external reports.
type Handler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// YearSales returns every sales line of a year, optionally narrowed by date.
func (h *Handler) YearSales(c *gin.Context) {
	year, ok := parseYear(c.Param("year"))
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "Invalid year format.")
		return
	}
	start, end, errRange := report.ParseRange(c.Query("start_date"), c.Query("end_date"))
	if errRange != nil {
		portalhttp.Error(c, http.StatusBadRequest, fronthandlers.DateRangeMessage(errRange))
		return
	}
	q, errQuery := report.YearQuery(report.Scope{All: true}, year, 0, 0)
	if errQuery != nil {
		portalhttp.Error(c, http.StatusBadRequest, errQuery.Error())
		return
	}
	sales, errLoad := report.LoadSales(c.Request.Context(), h.db, q.Narrow(start, end))
	if errLoad != nil {
		log.WithError(errLoad).Error("external sales load failed")
		portalhttp.Error(c, http.StatusInternalServerError, "load sales failed")
		return
	}
	c.JSON(http.StatusOK, sales)
}

// MySales returns the sales lines of the key owner's stations. Both dates are required.
func (h *Handler) MySales(c *gin.Context) {
	owner := portalhttp.CurrentUser(c)
	if owner == nil {
		portalhttp.Error(c, http.StatusForbidden, "This API key is not assigned to a user.")
		return
	}
	role := strings.ToLower(owner.RoleName())
	if role != authz.RoleArea && role != authz.RoleOwner {
		portalhttp.Error(c, http.StatusForbidden, "Permission denied. This key's owner does not have a valid role.")
		return
	}
	if strings.TrimSpace(c.Query("start_date")) == "" || strings.TrimSpace(c.Query("end_date")) == "" {
		portalhttp.Error(c, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	start, end, errRange := report.ParseRange(c.Query("start_date"), c.Query("end_date"))
	if errRange != nil {
		portalhttp.Error(c, http.StatusBadRequest, fronthandlers.DateRangeMessage(errRange))
		return
	}

	ctx := c.Request.Context()
	scope, errScope := report.ScopeFor(ctx, h.db, owner, false)
	if errScope != nil {
		log.WithError(errScope).Error("external scope failed")
		portalhttp.Error(c, http.StatusInternalServerError, "load sales failed")
		return
	}
	q := report.SalesQuery{Scope: scope, From: *start, To: end.AddDate(0, 0, 1)}
	sales, errLoad := report.LoadSales(ctx, h.db, q)
	if errLoad != nil {
		log.WithError(errLoad).Error("external my-areas load failed")
		portalhttp.Error(c, http.StatusInternalServerError, "load sales failed")
		return
	}
	c.JSON(http.StatusOK, sales)
}

// AMSummary returns per-area station totals for an area manager key.
// Dates default to the last 30 days ending today.
func (h *Handler) AMSummary(c *gin.Context) {
	owner := portalhttp.CurrentUser(c)
	if owner == nil || !strings.EqualFold(owner.RoleName(), authz.RoleArea) {
		portalhttp.Error(c, http.StatusForbidden, "This key is not valid for an Area report.")
		return
	}
	start, end, errRange := report.ParseRange(c.Query("start_date"), c.Query("end_date"))
	if errRange != nil {
		portalhttp.Error(c, http.StatusBadRequest, fronthandlers.DateRangeMessage(errRange))
		return
	}
	now := h.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if end == nil {
		end = &today
	}
	if start == nil {
		from := end.AddDate(0, 0, -defaultSummaryDays)
		start = &from
	}
	if end.Before(*start) {
		portalhttp.Error(c, http.StatusBadRequest, fronthandlers.DateRangeMessage(report.ErrInvertedRange))
		return
	}
	out, errBuild := report.BuildAMReport(c.Request.Context(), h.db, owner, *start, *end)
	if errBuild != nil {
		log.WithError(errBuild).Error("am summary failed")
		portalhttp.Error(c, http.StatusInternalServerError, "build report failed")
		return
	}
	c.JSON(http.StatusOK, out)
}

func parseYear(raw string) (int, bool) {
	year, errParse := strconv.Atoi(strings.TrimSpace(raw))
	if errParse != nil || year < 1900 || year > 9999 {
		return 0, false
	}
	return year, true
}
