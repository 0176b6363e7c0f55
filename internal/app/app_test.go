package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/db"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/realtime"
	"github.com/router-for-me/StationPortal/internal/security"
	"github.com/router-for-me/StationPortal/internal/sessions"
	"gorm.io/gorm"
)

type testServer struct {
	conn   *gorm.DB
	hub    *realtime.Hub
	router *gin.Engine
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := realtime.NewHub(nil)
	gin.SetMode(gin.TestMode)
	router := NewRouter(conn, Services{
		Base:     ctx,
		Hub:      hub,
		Broker:   realtime.NewBroker(nil, "", hub, nil),
		Sessions: sessions.NewService(conn),
		AppConfig: config.Config{
			JWT: config.JWTConfig{Secret: "app-secret", ExpireMinutes: 30},
		},
	})
	return testServer{conn: conn, hub: hub, router: router}
}

func (s testServer) createUser(t *testing.T, username, roleName string) {
	t.Helper()
	var role models.Role
	if errRole := s.conn.Where("name = ?", roleName).First(&role).Error; errRole != nil {
		t.Fatalf("load role: %v", errRole)
	}
	hash, errHash := security.HashPassword("secret1")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	user := models.User{Username: username, Email: username + "@example.com", HashedPassword: hash, IsActive: true, RoleID: &role.ID}
	if errCreate := s.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
}

func (s testServer) login(t *testing.T, username string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status=%d body=%s", username, rec.Code, rec.Body.String())
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode token: %v", errDecode)
	}
	return body.AccessToken
}

func (s testServer) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesRequireAccessAdmin(t *testing.T) {
	s := newTestServer(t)
	if _, errCreate := CreateAdminUser(context.Background(), s.conn, CreateAdminParams{Username: "root", Password: "secret1"}); errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	s.createUser(t, "olive", authz.RoleOwner)

	if rec := s.do(http.MethodGet, "/api/admin/users", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
	ownerToken := s.login(t, "olive")
	rec := s.do(http.MethodGet, "/api/admin/users", ownerToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("owner status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Access denied") {
		t.Fatalf("owner body = %s", rec.Body.String())
	}
	adminToken := s.login(t, "root")
	if rec := s.do(http.MethodGet, "/api/admin/users", adminToken); rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateAdminUserRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)
	params := CreateAdminParams{Username: "root", Email: "root@example.com", Password: "secret1"}
	if _, errCreate := CreateAdminUser(context.Background(), s.conn, params); errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	if _, errCreate := CreateAdminUser(context.Background(), s.conn, params); errCreate == nil {
		t.Fatalf("expected duplicate admin to fail")
	}
	if _, errCreate := CreateAdminUser(context.Background(), s.conn, CreateAdminParams{Username: "r2", Password: "secret1"}); errCreate == nil {
		t.Fatalf("expected short username to fail")
	}
}

func TestHealthzAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"ok"`) {
		t.Fatalf("healthz status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodGet, "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rec.Code)
	}
}

func TestTerminateReachesOpenDashboard(t *testing.T) {
	s := newTestServer(t)
	if _, errCreate := CreateAdminUser(context.Background(), s.conn, CreateAdminParams{Username: "root", Password: "secret1"}); errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	s.createUser(t, "olive", authz.RoleOwner)
	adminToken := s.login(t, "root")
	ownerToken := s.login(t, "olive")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	received := make(chan string, 1)
	listener := &realtime.Listener{
		URL:           "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/notifications",
		Token:         func() string { return ownerToken },
		OnForceLogout: func(message string) { received <- message },
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for s.hub.Connections() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("listener never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var owner models.User
	if errFind := s.conn.Where("username = ?", "olive").First(&owner).Error; errFind != nil {
		t.Fatalf("load owner: %v", errFind)
	}
	body := strings.NewReader(`{"message":"Your session was ended by an administrator."}`)
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/admin/sessions/%d/terminate", srv.URL, owner.ID), body)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Content-Type", "application/json")
	resp, errDo := http.DefaultClient.Do(req)
	if errDo != nil {
		t.Fatalf("terminate: %v", errDo)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("terminate status = %d", resp.StatusCode)
	}

	select {
	case msg := <-received:
		if msg != "Your session was ended by an administrator." {
			t.Fatalf("message = %q", msg)
		}
	case <-ctx.Done():
		t.Fatalf("force logout not delivered")
	}
	if errRun := <-done; !errors.Is(errRun, realtime.ErrForcedLogout) {
		t.Fatalf("listener returned %v", errRun)
	}
	if rec := s.do(http.MethodGet, "/api/users/me", ownerToken); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token status = %d, want 401", rec.Code)
	}
}
