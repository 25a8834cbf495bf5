// Package schema creates the catalog tables. There is no versioned
// migration history: tables are brought up to date with gorm's AutoMigrate
// on `catalog serve` and `catalog seed`.
package schema

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/queue"
)

// Models lists every table the service owns.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Product{},
		&models.ProductAudit{},
		&queue.FailedJob{},
	}
}

// Ensure creates missing tables, columns and indexes.
func Ensure(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("schema: auto-migrate: %w", err)
	}
	if db.Dialector.Name() != "sqlite" {
		return nil
	}

	// Product ids are never reused, or a new product would inherit the
	// audit history of a deleted one.
	rebuilt, err := sqliteAutoIncrement(db, &models.Product{})
	if err != nil {
		return fmt.Errorf("schema: products id sequence: %w", err)
	}
	if rebuilt {
		// Dropping the old table dropped its indexes too.
		if err := db.AutoMigrate(&models.Product{}); err != nil {
			return fmt.Errorf("schema: auto-migrate: %w", err)
		}
	}
	return nil
}

// sqliteAutoIncrement rebuilds model's table so its integer primary key is
// declared AUTOINCREMENT. The sqlite driver only emits a rowid alias, which
// hands the highest deleted id to the next insert. Rows are kept.
func sqliteAutoIncrement(db *gorm.DB, model interface{}) (bool, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return false, err
	}
	table := stmt.Schema.Table

	var ddl string
	if err := db.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&ddl).Error; err != nil {
		return false, err
	}
	if ddl == "" || strings.Contains(strings.ToUpper(ddl), "AUTOINCREMENT") {
		return false, nil
	}

	const (
		idColumn   = "`id` integer"
		primaryKey = ",PRIMARY KEY (`id`)"
	)
	if !strings.Contains(ddl, idColumn+",") || !strings.Contains(ddl, primaryKey) {
		return false, fmt.Errorf("unexpected definition for %s: %s", table, ddl)
	}
	tmp := table + "__rebuild"
	next := strings.Replace(ddl, idColumn+",", idColumn+" PRIMARY KEY AUTOINCREMENT,", 1)
	next = strings.Replace(next, primaryKey, "", 1)
	next = strings.Replace(next, "`"+table+"`", "`"+tmp+"`", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, q := range []string{
			next,
			fmt.Sprintf("INSERT INTO `%s` SELECT * FROM `%s`", tmp, table),
			fmt.Sprintf("DROP TABLE `%s`", table),
			fmt.Sprintf("ALTER TABLE `%s` RENAME TO `%s`", tmp, table),
		} {
			if err := tx.Exec(q).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return err == nil, err
}
