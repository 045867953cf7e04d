package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ctt/internal/bootstrap/config"
)

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "db")
	dsn := filepath.Join(dir, "ctt.sqlite") + "?_pragma=busy_timeout(5000)"

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()

	if err := db.Exec("CREATE TABLE probe (id INTEGER)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres", DSN: "x"}); err == nil {
		t.Fatalf("Open() expected error for unsupported driver")
	}
}
