package external

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/router-for-me/StationPortal/internal/access"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/db"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/report"
	"gorm.io/gorm"
)

type fixture struct {
	conn    *gorm.DB
	router  *gin.Engine
	manager models.User
	area    models.Area
}

func setupExternal(t *testing.T) fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:external_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errSeed := db.Seed(conn); errSeed != nil {
		t.Fatalf("seed: %v", errSeed)
	}

	var role models.Role
	if errRole := conn.Where("name = ?", authz.RoleArea).First(&role).Error; errRole != nil {
		t.Fatalf("load role: %v", errRole)
	}
	area := models.Area{Name: "North"}
	if errCreate := conn.Create(&area).Error; errCreate != nil {
		t.Fatalf("create area: %v", errCreate)
	}
	stations := []models.Station{
		{StationID: "F601", StationName: "One", AreaID: &area.ID},
		{StationID: "F602", StationName: "Two", AreaID: &area.ID},
		{StationID: "G700", StationName: "Elsewhere"},
	}
	if errCreate := conn.Create(&stations).Error; errCreate != nil {
		t.Fatalf("create stations: %v", errCreate)
	}
	manager := models.User{Username: "am", Email: "am@example.com", HashedPassword: "x", IsActive: true, RoleID: &role.ID}
	if errCreate := conn.Create(&manager).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	if errAssoc := conn.Model(&manager).Association("ManagedAreas").Append(&area); errAssoc != nil {
		t.Fatalf("assign area: %v", errAssoc)
	}

	day := func(d int) time.Time { return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC) }
	sales := []models.SaleSummary{
		{StationID: "F601", DateCompleted: day(1), MatID: report.MatHSD, TotalVolume: 10, TotalAmount: 100},
		{StationID: "F601", DateCompleted: day(2), MatID: report.MatULG95, TotalVolume: 5, TotalAmount: 60},
		{StationID: "G700", DateCompleted: day(1), MatID: report.MatHSD, TotalVolume: 99, TotalAmount: 999},
	}
	if errCreate := conn.Create(&sales).Error; errCreate != nil {
		t.Fatalf("create sales: %v", errCreate)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterExternalRoutes(router, conn, access.NewDBAPIKeyProvider(conn), nil)
	return fixture{conn: conn, router: router, manager: manager, area: area}
}

func (f fixture) issueKey(t *testing.T, scope string, owner *uint64) string {
	t.Helper()
	secret := fmt.Sprintf("sp_test_%s_%d", scope, time.Now().UnixNano())
	key := models.APIKey{ID: fmt.Sprintf("%d", time.Now().UnixNano()), Key: secret, Scope: scope, IsActive: true, UserID: owner}
	if errCreate := f.conn.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}
	return secret
}

func (f fixture) get(path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set(access.HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestYearSales_KeyChecks(t *testing.T) {
	f := setupExternal(t)

	if rec := f.get("/api/external/sales/2025", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d, want 401", rec.Code)
	}
	if rec := f.get("/api/external/sales/2025", "sp_unknown"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key status = %d, want 401", rec.Code)
	}
	summaryKey := f.issueKey(t, models.ScopeAMSummaryReport, nil)
	if rec := f.get("/api/external/sales/2025", summaryKey); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong scope status = %d, want 403", rec.Code)
	}

	key := f.issueKey(t, models.ScopeExternalSales, nil)
	rec := f.get("/api/external/sales/2025?start_date=2025-03-02", key)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var sales []report.Sale
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &sales); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if len(sales) != 1 || sales[0].MatName != "ULG95" {
		t.Fatalf("unexpected sales %+v", sales)
	}
	if rec := f.get("/api/external/sales/2025?end_date=03-01-2025", key); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}
}

func TestMySales_RequiresDatesAndScopesToAreas(t *testing.T) {
	f := setupExternal(t)
	key := f.issueKey(t, models.ScopeAMSalesReport, &f.manager.ID)

	if rec := f.get("/api/external/reports/sales/my-areas?start_date=2025-03-01", key); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing end_date status = %d, want 400", rec.Code)
	}
	rec := f.get("/api/external/reports/sales/my-areas?start_date=2025-03-01&end_date=2025-03-31", key)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var sales []report.Sale
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &sales); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if len(sales) != 2 {
		t.Fatalf("sales = %d, want 2 from the managed area", len(sales))
	}
	for _, s := range sales {
		if s.StationID == "G700" {
			t.Fatalf("station outside the managed area leaked")
		}
	}

	orphan := f.issueKey(t, models.ScopeAMSalesReport, nil)
	if rec := f.get("/api/external/reports/sales/my-areas?start_date=2025-03-01&end_date=2025-03-31", orphan); rec.Code != http.StatusForbidden {
		t.Fatalf("unowned key status = %d, want 403", rec.Code)
	}
}

func TestAMSummary_GroupsStationsByArea(t *testing.T) {
	f := setupExternal(t)
	key := f.issueKey(t, models.ScopeAMSummaryReport, &f.manager.ID)

	rec := f.get("/api/external/reports/am-summary?start_date=2025-03-01&end_date=2025-03-31", key)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var out report.AMReport
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if out.AreaManagerName != "am" || len(out.AssignedAreas) != 1 {
		t.Fatalf("unexpected report %+v", out)
	}
	stations := out.AssignedAreas[0].Stations
	if len(stations) != 2 {
		t.Fatalf("stations = %d, want 2", len(stations))
	}
	if stations[0].StationID != "F601" || stations[0].TotalVolume != 15 || stations[0].TotalAmount != 160 {
		t.Fatalf("unexpected F601 totals %+v", stations[0])
	}
	if stations[1].TotalVolume != 0 {
		t.Fatalf("F602 without sales should total zero, got %+v", stations[1])
	}
}
