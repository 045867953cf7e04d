package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/infrastructure/persistence/sqlite/model"
	"ctt/internal/ports"
)

// SQLiteCache stores small key/value pairs in the ctt_kv table of the tracker database.
type SQLiteCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("key is required")
	}
	return trimmed, nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	k, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.KV
	if err := c.db.WithContext(ctx).Where("key = ?", k).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrapf(err, "get kv %q", k)
	}
	return row.Value, true, nil
}

// Set upserts key. Entries never expire, so ttl is ignored.
func (c *SQLiteCache) Set(ctx context.Context, key string, value string, _ time.Duration) error {
	k, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	row := model.KV{
		Key:       k,
		Value:     value,
		UpdatedAt: domainctt.FormatTime(c.now()),
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "set kv %q", k)
	}
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	k, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.db.WithContext(ctx).Where("key = ?", k).Delete(&model.KV{}).Error; err != nil {
		return errs.Wrapf(err, "delete kv %q", k)
	}
	return nil
}
