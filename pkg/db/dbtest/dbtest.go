// Package dbtest provides an embedded SQLite database carrying the production
// schema, for package tests that exercise gorm queries end to end.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eventmatch/pkg/db/migrations"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to the calling test.
// A single connection is used so concurrent callers serialize the way a
// real server serializes conflicting writes.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:eventmatch_%d?mode=memory&cache=shared&_foreign_keys=on", seq.Add(1))
	orm, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := orm.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := orm.AutoMigrate(migrations.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return orm
}
