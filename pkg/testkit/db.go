// Package testkit holds helpers shared by the catalog's package tests.
package testkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/database/schema"
	"github.com/shashiranjanraj/catalog/pkg/database"
)

// NewDB opens a fresh SQLite database under t.TempDir with every catalog
// table created. It is closed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(context.Background(), database.Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "catalog.db") + "?_busy_timeout=5000",
	})
	require.NoError(t, err, "testkit: open sqlite")
	require.NoError(t, schema.Ensure(db), "testkit: create tables")

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
