package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/db"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/stationinfo"
	"gorm.io/gorm"
)

func setupAdminTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:admin_handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	return conn
}

func loadRole(t *testing.T, conn *gorm.DB, name string) models.Role {
	t.Helper()
	var role models.Role
	if errFind := conn.Preload("Permissions").Where("name = ?", name).First(&role).Error; errFind != nil {
		t.Fatalf("load role %s: %v", name, errFind)
	}
	return role
}

// newAdminRouter mounts handlers behind a middleware that impersonates actorID.
func newAdminRouter(actorID uint64, register func(r *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/api/admin")
	group.Use(func(c *gin.Context) {
		c.Set(portalhttp.ContextUserID, actorID)
		c.Next()
	})
	register(group)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedStations(t *testing.T, conn *gorm.DB, ids ...string) []models.Station {
	t.Helper()
	out := make([]models.Station, 0, len(ids))
	for _, sid := range ids {
		s := models.Station{StationID: sid, StationName: "Station " + sid}
		if errCreate := conn.Create(&s).Error; errCreate != nil {
			t.Fatalf("create station %s: %v", sid, errCreate)
		}
		out = append(out, s)
	}
	return out
}

func TestUserCreate_DefaultsActiveAndRoundTrips(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleOwner)
	h := NewUserHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) {
		r.POST("/users", h.Create)
		r.GET("/users", h.List)
	})

	rec := doJSON(router, http.MethodPost, "/api/admin/users", gin.H{
		"username": "owner1",
		"email":    "owner1@example.com",
		"password": "secret1",
		"role_id":  role.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var created schema.User
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if !created.IsActive {
		t.Fatalf("expected is_active to default to true")
	}
	if created.Role == nil || created.Role.Name != authz.RoleOwner {
		t.Fatalf("expected owner role, got %+v", created.Role)
	}

	rec = doJSON(router, http.MethodGet, "/api/admin/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed []schema.User
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &listed); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	found := false
	for _, u := range listed {
		if u.ID == created.ID {
			found = true
			if u.Username != "owner1" || !u.IsActive {
				t.Fatalf("listed user mismatch: %+v", u)
			}
		}
	}
	if !found {
		t.Fatalf("created user %d missing from list", created.ID)
	}

	rec = doJSON(router, http.MethodPost, "/api/admin/users", gin.H{
		"username": "owner1",
		"email":    "other@example.com",
		"password": "secret1",
		"role_id":  role.ID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate username status = %d, want 400", rec.Code)
	}
}

func TestUserCreate_ExplicitInactive(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleArea)
	h := NewUserHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) { r.POST("/users", h.Create) })

	rec := doJSON(router, http.MethodPost, "/api/admin/users", gin.H{
		"username":  "manager",
		"email":     "manager@example.com",
		"password":  "secret1",
		"role_id":   role.ID,
		"is_active": false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var stored models.User
	if errFind := conn.Where("username = ?", "manager").First(&stored).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if stored.IsActive {
		t.Fatalf("expected stored user to be inactive")
	}
}

func TestUserCreate_RejectsShortPasswordAndBadEmail(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleOwner)
	h := NewUserHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) { r.POST("/users", h.Create) })

	cases := []gin.H{
		{"username": "abc", "email": "abc@example.com", "password": "123", "role_id": role.ID},
		{"username": "abc", "email": "not-an-email", "password": "secret1", "role_id": role.ID},
		{"username": "ab", "email": "ab@example.com", "password": "secret1", "role_id": role.ID},
	}
	for i, body := range cases {
		if rec := doJSON(router, http.MethodPost, "/api/admin/users", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d status = %d, want 400", i, rec.Code)
		}
	}
}

func TestUserDelete_RefusesSelf(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleAdmin)
	user := models.User{Username: "root", Email: "root@example.com", HashedPassword: "x", IsActive: true, RoleID: &role.ID}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	h := NewUserHandler(conn)
	router := newAdminRouter(user.ID, func(r *gin.RouterGroup) { r.DELETE("/users/:id", h.Delete) })

	rec := doJSON(router, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", user.ID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self delete status = %d, want 400", rec.Code)
	}
}

func TestAreaStations_RejectsStationOfAnotherArea(t *testing.T) {
	conn := setupAdminTestDB(t)
	stations := seedStations(t, conn, "F601", "F602", "F603")
	north := models.Area{Name: "North"}
	south := models.Area{Name: "South"}
	if errCreate := conn.Create(&north).Error; errCreate != nil {
		t.Fatalf("create area: %v", errCreate)
	}
	if errCreate := conn.Create(&south).Error; errCreate != nil {
		t.Fatalf("create area: %v", errCreate)
	}
	if errUpdate := conn.Model(&models.Station{}).Where("id = ?", stations[0].ID).Update("area_id", north.ID).Error; errUpdate != nil {
		t.Fatalf("assign station: %v", errUpdate)
	}

	h := NewAssignmentHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) {
		r.PUT("/assignments/areas/:id/stations", h.SetAreaStations)
	})

	rec := doJSON(router, http.MethodPut, fmt.Sprintf("/api/admin/assignments/areas/%d/stations", south.ID), gin.H{
		"station_ids": []uint64{stations[0].ID, stations[1].ID},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body=%s", rec.Code, rec.Body.String())
	}
	var unchanged models.Station
	if errFind := conn.First(&unchanged, stations[1].ID).Error; errFind != nil {
		t.Fatalf("load station: %v", errFind)
	}
	if unchanged.AreaID != nil {
		t.Fatalf("rejected save must not assign F602, got area %d", *unchanged.AreaID)
	}

	rec = doJSON(router, http.MethodPut, fmt.Sprintf("/api/admin/assignments/areas/%d/stations", south.ID), gin.H{
		"station_ids": []uint64{stations[1].ID, stations[2].ID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var area schema.Area
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &area); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if len(area.Stations) != 2 {
		t.Fatalf("expected 2 stations in South, got %d", len(area.Stations))
	}

	// Shrinking the list releases the dropped station.
	rec = doJSON(router, http.MethodPut, fmt.Sprintf("/api/admin/assignments/areas/%d/stations", south.ID), gin.H{
		"station_ids": []uint64{stations[2].ID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var released models.Station
	if errFind := conn.First(&released, stations[1].ID).Error; errFind != nil {
		t.Fatalf("load station: %v", errFind)
	}
	if released.AreaID != nil {
		t.Fatalf("expected F602 to be released")
	}
}

func TestUserStations_RejectsStationOwnedByAnotherUser(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleOwner)
	stations := seedStations(t, conn, "F701")
	first := models.User{Username: "first", Email: "first@example.com", HashedPassword: "x", IsActive: true, RoleID: &role.ID}
	second := models.User{Username: "second", Email: "second@example.com", HashedPassword: "x", IsActive: true, RoleID: &role.ID}
	for _, u := range []*models.User{&first, &second} {
		if errCreate := conn.Create(u).Error; errCreate != nil {
			t.Fatalf("create user: %v", errCreate)
		}
	}
	if errAssoc := conn.Model(&first).Association("OwnedStations").Append(&stations[0]); errAssoc != nil {
		t.Fatalf("assign owner: %v", errAssoc)
	}

	h := NewAssignmentHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) {
		r.PUT("/assignments/users/:id/stations", h.SetUserStations)
	})
	rec := doJSON(router, http.MethodPut, fmt.Sprintf("/api/admin/assignments/users/%d/stations", second.ID), gin.H{
		"station_ids": []uint64{stations[0].ID},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestStationOwners_RejectsSecondOwnerAndSilentTransfer(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleOwner)
	stations := seedStations(t, conn, "F601")
	ownerA := models.User{Username: "ownera", Email: "ownera@example.com", HashedPassword: "x", IsActive: true, RoleID: &role.ID}
	ownerB := models.User{Username: "ownerb", Email: "ownerb@example.com", HashedPassword: "x", IsActive: true, RoleID: &role.ID}
	for _, u := range []*models.User{&ownerA, &ownerB} {
		if errCreate := conn.Create(u).Error; errCreate != nil {
			t.Fatalf("create user: %v", errCreate)
		}
	}

	h := NewAssignmentHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) {
		r.PUT("/assignments/users/:id/stations", h.SetUserStations)
		r.PUT("/assignments/stations/:id/owners", h.SetStationOwners)
	})
	ownersPath := fmt.Sprintf("/api/admin/assignments/stations/%d/owners", stations[0].ID)

	rec := doJSON(router, http.MethodPut, fmt.Sprintf("/api/admin/assignments/users/%d/stations", ownerA.ID), gin.H{
		"station_ids": []uint64{stations[0].ID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(router, http.MethodPut, ownersPath, gin.H{"owner_ids": []uint64{ownerA.ID, ownerB.ID}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("two owners status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Station F601 is already assigned to ownera") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = doJSON(router, http.MethodPut, ownersPath, gin.H{"owner_ids": []uint64{ownerB.ID}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("transfer status = %d, want 409", rec.Code)
	}

	var owners []models.User
	if errAssoc := conn.Model(&stations[0]).Association("Owners").Find(&owners); errAssoc != nil {
		t.Fatalf("load owners: %v", errAssoc)
	}
	if len(owners) != 1 || owners[0].ID != ownerA.ID {
		t.Fatalf("owners = %+v, want only ownera", owners)
	}

	rec = doJSON(router, http.MethodPut, ownersPath, gin.H{"owner_ids": []uint64{ownerA.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("same owner status = %d, body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(router, http.MethodPut, ownersPath, gin.H{"owner_ids": []uint64{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("release status = %d, body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(router, http.MethodPut, ownersPath, gin.H{"owner_ids": []uint64{ownerB.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign after release status = %d, body=%s", rec.Code, rec.Body.String())
	}
}

func TestRolePermissions_FullReplaceIsIdempotent(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleOwner)
	var perms []models.Permission
	if errFind := conn.Where("name IN ?", []string{authz.PermViewDashboard, authz.PermExport}).Order("id").Find(&perms).Error; errFind != nil {
		t.Fatalf("load permissions: %v", errFind)
	}
	ids := []uint64{perms[0].ID, perms[1].ID}

	h := NewRoleHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) {
		r.POST("/roles/:id/permissions", h.SetPermissions)
	})
	path := fmt.Sprintf("/api/admin/roles/%d/permissions", role.ID)

	var first, second schema.Role
	for i, dst := range []*schema.Role{&first, &second} {
		rec := doJSON(router, http.MethodPost, path, gin.H{"permission_ids": ids})
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d status = %d, body=%s", i, rec.Code, rec.Body.String())
		}
		if errDecode := json.Unmarshal(rec.Body.Bytes(), dst); errDecode != nil {
			t.Fatalf("decode: %v", errDecode)
		}
	}
	if len(first.Permissions) != 2 || len(second.Permissions) != 2 {
		t.Fatalf("expected exactly 2 permissions, got %d then %d", len(first.Permissions), len(second.Permissions))
	}
	var count int64
	conn.Table("role_permissions").Where("role_id = ?", role.ID).Count(&count)
	if count != 2 {
		t.Fatalf("role_permissions rows = %d, want 2", count)
	}

	rec := doJSON(router, http.MethodPost, path, gin.H{"permission_ids": []uint64{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	conn.Table("role_permissions").Where("role_id = ?", role.ID).Count(&count)
	if count != 0 {
		t.Fatalf("role_permissions rows after clear = %d, want 0", count)
	}
}

func TestRoleDelete_RefusesAdmin(t *testing.T) {
	conn := setupAdminTestDB(t)
	role := loadRole(t, conn, authz.RoleAdmin)
	h := NewRoleHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) { r.DELETE("/roles/:id", h.Delete) })

	rec := doJSON(router, http.MethodDelete, fmt.Sprintf("/api/admin/roles/%d", role.ID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStationExport_CSVRowCount(t *testing.T) {
	conn := setupAdminTestDB(t)
	seedStations(t, conn, "S10", "S2", "S1")
	h := NewStationHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) {
		r.GET("/station-info/export", h.Export)
	})

	rec := doJSON(router, http.MethodGet, "/api/admin/station-info/export?format=csv&sort=station_id", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	records, errRead := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	if errRead != nil {
		t.Fatalf("read csv: %v", errRead)
	}
	if len(records) != 4 {
		t.Fatalf("csv rows = %d, want header + 3", len(records))
	}
	for i, col := range stationinfo.Columns {
		if records[0][i] != col {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
	got := []string{records[1][0], records[2][0], records[3][0]}
	want := []string{"S1", "S2", "S10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("natural order = %v, want %v", got, want)
		}
	}

	rec = doJSON(router, http.MethodGet, "/api/admin/station-info/export?format=pdf", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("pdf status = %d, want 400", rec.Code)
	}
}

func TestAPIKeyCreate_RevealsSecretOnce(t *testing.T) {
	conn := setupAdminTestDB(t)
	h := NewAPIKeyHandler(conn)
	router := newAdminRouter(1, func(r *gin.RouterGroup) {
		r.POST("/api-keys", h.Create)
		r.GET("/api-keys", h.List)
	})

	rec := doJSON(router, http.MethodPost, "/api/admin/api-keys", gin.H{"name": "partner", "scope": models.ScopeExternalSales})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var created schema.APIKey
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if len(created.Key) < 10 || created.Key[:3] != "sp_" {
		t.Fatalf("expected full sp_ secret, got %q", created.Key)
	}

	rec = doJSON(router, http.MethodGet, "/api/admin/api-keys", nil)
	var listed []schema.APIKey
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &listed); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if len(listed) != 1 || listed[0].Key == created.Key {
		t.Fatalf("expected masked key in list, got %+v", listed)
	}

	rec = doJSON(router, http.MethodPost, "/api/admin/api-keys", gin.H{"scope": "everything"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid scope status = %d, want 400", rec.Code)
	}
}
