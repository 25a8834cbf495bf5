package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDialectorSupportedDrivers(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres", "mysql", "sqlserver", "SQLite"} {
		d, err := buildDialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.NotNil(t, d, driver)
	}
}

func TestBuildDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := buildDialector("oracle", "dsn")
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestConnectSQLite(t *testing.T) {
	db, err := Connect(context.Background(), Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
	})
	require.NoError(t, err)
	defer Close(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}
