package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

func TestIntAcceptsNumbersAndStrings(t *testing.T) {
	Store(time.Now(), map[string]json.RawMessage{
		"A": json.RawMessage(`30`),
		"B": json.RawMessage(`"45"`),
		"C": json.RawMessage(`1.5`),
	})
	t.Cleanup(func() { Store(time.Time{}, nil) })

	if Int("A", 0) != 30 || Int("B", 0) != 45 {
		t.Fatalf("unexpected ints %d %d", Int("A", 0), Int("B", 0))
	}
	if Int("C", 7) != 7 || Int("missing", 9) != 9 {
		t.Fatalf("expected fallbacks")
	}
}

func TestPutAndRefresh(t *testing.T) {
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() { Store(time.Time{}, nil) })

	ctx := context.Background()
	if SiteName() != DefaultSiteName {
		t.Fatalf("expected default site name")
	}
	if errPut := Put(ctx, conn, SiteNameKey, json.RawMessage(`"North Fuel"`)); errPut != nil {
		t.Fatalf("put: %v", errPut)
	}
	if errPut := Put(ctx, conn, SiteNameKey, json.RawMessage(`"South Fuel"`)); errPut != nil {
		t.Fatalf("second put: %v", errPut)
	}
	if SiteName() != "South Fuel" {
		t.Fatalf("unexpected site name %q", SiteName())
	}
	if errPut := Put(ctx, conn, SiteNameKey, json.RawMessage(`{bad`)); errPut == nil {
		t.Fatalf("expected invalid json error")
	}
	var count int64
	conn.Model(&models.Setting{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
}
