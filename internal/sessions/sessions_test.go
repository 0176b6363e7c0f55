package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sessions_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.Role{}, &models.Permission{}, &models.User{}, &models.Area{}, &models.Station{},
		&models.ActiveSession{}, &models.SessionHistory{}, &models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{Username: name, Email: name + "@example.com", HashedPassword: "x", IsActive: true}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestRecordLoginAndEndAll(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()
	user := createUser(t, conn, "olivia")

	for i := 0; i < 2; i++ {
		if _, err := svc.RecordLogin(ctx, user, "10.0.0.1", "cli"); err != nil {
			t.Fatalf("record login: %v", err)
		}
	}
	active, err := svc.ListActive(ctx)
	if err != nil || len(active) != 2 {
		t.Fatalf("expected 2 active sessions, got %d err=%v", len(active), err)
	}

	removed, err := svc.EndAll(ctx, user.ID, ReasonTerminated)
	if err != nil {
		t.Fatalf("end all: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed sessions, got %d", removed)
	}

	var reloaded models.User
	conn.First(&reloaded, user.ID)
	if reloaded.TokenVersion != 1 {
		t.Fatalf("expected token version 1, got %d", reloaded.TokenVersion)
	}

	history, total, err := svc.ListHistory(ctx, HistoryFilter{UserID: &user.ID})
	if err != nil || total != 2 {
		t.Fatalf("expected 2 history rows, got %d err=%v", total, err)
	}
	for _, h := range history {
		if h.LogoutTime == nil {
			t.Fatalf("history row %d left open", h.ID)
		}
		var details map[string]string
		_ = json.Unmarshal(h.Details, &details)
		if details["reason"] != ReasonTerminated {
			t.Fatalf("unexpected details %s", string(h.Details))
		}
	}

	if _, err = svc.EndAll(ctx, 9999, ReasonLogout); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRetentionCleanerRemovesOldHistoryAndStaleSessions(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	user := createUser(t, conn, "oscar")
	now := time.Now().UTC()

	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -1)
	conn.Create(&[]models.SessionHistory{
		{UserID: user.ID, SessionID: "old", LoginTime: old, LogoutTime: &old},
		{UserID: user.ID, SessionID: "recent", LoginTime: recent, LogoutTime: &recent},
		{UserID: user.ID, SessionID: "stale", LoginTime: now.Add(-2 * time.Hour)},
	})
	conn.Create(&models.ActiveSession{SessionID: "stale", UserID: user.ID, Username: "oscar", LoginTime: now.Add(-2 * time.Hour)})
	conn.Create(&models.ActiveSession{SessionID: "fresh", UserID: user.ID, Username: "oscar", LoginTime: now})

	cleaner := NewRetentionCleaner(conn, config.SessionsConfig{RetentionDays: 30, CleanupSchedule: "@every 1h"}, 30*time.Minute, nil)
	deleted, stale := cleaner.CleanupOnce(ctx)
	if deleted != 1 || stale != 1 {
		t.Fatalf("expected 1 history and 1 stale removal, got %d %d", deleted, stale)
	}

	var remaining []models.ActiveSession
	conn.Find(&remaining)
	if len(remaining) != 1 || remaining[0].SessionID != "fresh" {
		t.Fatalf("unexpected active sessions %+v", remaining)
	}
	var staleHistory models.SessionHistory
	conn.Where("session_id = ?", "stale").First(&staleHistory)
	if staleHistory.LogoutTime == nil {
		t.Fatalf("stale session history must be closed")
	}
}

func TestRetentionCleanerRejectsBadSchedule(t *testing.T) {
	conn := openTestDB(t)
	cleaner := NewRetentionCleaner(conn, config.SessionsConfig{CleanupSchedule: "not a schedule"}, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cleaner.Start(ctx); err == nil {
		t.Fatalf("expected schedule error")
	}
}
