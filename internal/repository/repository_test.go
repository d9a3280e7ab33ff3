package repository

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/internal/database"
)

// newTestDB opens a private in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbConfig := &config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:   "SILENT",
	}

	db, err := database.Open(dbConfig)
	require.NoError(t, err)
	require.NoError(t, MigrateDB(dbConfig, db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestRepositories(t *testing.T) (*Repositories, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return InitRepositories(db), db
}
