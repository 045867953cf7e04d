package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"ctt/internal/infrastructure/persistence/sqlite/model"
)

const lastRunKey = "auto:last_run"

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "kv.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate ctt_kv: %v", err)
	}

	c := NewSQLiteCache(db)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, lastRunKey, `{"run_id":"a"}`, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, lastRunKey, `{"run_id":"b"}`, 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}

	value, found, err := cache.Get(ctx, lastRunKey)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != `{"run_id":"b"}` {
		t.Fatalf("Get() = %q, %v", value, found)
	}

	var row model.KV
	if err := cache.db.Where("key = ?", lastRunKey).Take(&row).Error; err != nil {
		t.Fatalf("query row: %v", err)
	}
	if row.UpdatedAt != "2026-03-01 09:30:00.000000" {
		t.Fatalf("updated_at = %q", row.UpdatedAt)
	}

	if err := cache.Delete(ctx, lastRunKey); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, err := cache.Get(ctx, lastRunKey); err != nil || found {
		t.Fatalf("Get(after delete) found=%v err=%v", found, err)
	}
}

func TestSQLiteCacheRejectsBlankKey(t *testing.T) {
	cache := setupSQLiteCache(t)

	if err := cache.Set(context.Background(), "  ", "v", 0); err == nil {
		t.Fatalf("Set(blank) expected error")
	}
	if _, _, err := cache.Get(context.Background(), ""); err == nil {
		t.Fatalf("Get(blank) expected error")
	}
}
