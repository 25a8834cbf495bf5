package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/database/seeders"
	"github.com/shashiranjanraj/catalog/internal/server"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/database"
	"github.com/shashiranjanraj/catalog/pkg/storage"
)

// withDB loads config, opens the database with the schema in place and
// runs fn. The connection is closed afterwards.
func withDB(ctx context.Context, fn func(db *gorm.DB) error) error {
	if err := config.Load(); err != nil {
		return err
	}
	if sink := server.SetupLogger(ctx); sink != nil {
		defer sink.Close()
	}
	db, err := server.OpenDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck
	return fn(db)
}

// catalog seed [name...]
var seedCmd = &cobra.Command{
	Use:   "seed [seeder...]",
	Short: "Run database seeders (all, or only those named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *gorm.DB) error {
			return seeders.RunAll(cmd.Context(), db, args...)
		})
	},
}

var userFlags struct {
	email, name, password, role string
}

// catalog user:create
var userCreateCmd = &cobra.Command{
	Use:   "user:create",
	Short: "Create an API user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *gorm.DB) error {
			svc := services.NewAuthService(repositories.NewUserRepository(db), auth.FromConfig())
			u, err := svc.Register(cmd.Context(), userFlags.name, userFlags.email, userFlags.password, userFlags.role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user #%d %s (%s)\n", u.ID, u.Email, u.Role)
			return nil
		})
	},
}

var exportFlags struct {
	disk, path string
}

// catalog export
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of the catalogue to a storage disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *gorm.DB) error {
			name := exportFlags.disk
			if name == "" {
				name = config.StorageDefault()
			}
			disk, err := storage.Open(cmd.Context(), name)
			if err != nil {
				return err
			}

			svc := services.NewExportService(repositories.NewProductRepository(db))
			path, snap, err := svc.Export(cmd.Context(), disk, exportFlags.path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d products to %s\n", snap.Count, disk.URL(path))
			return nil
		})
	},
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&userFlags.email, "email", "", "login email (required)")
	f.StringVar(&userFlags.name, "name", "", "display name")
	f.StringVar(&userFlags.password, "password", "", "password, at least 8 characters (required)")
	f.StringVar(&userFlags.role, "role", "viewer", "admin, editor or viewer")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	exportCmd.Flags().StringVar(&exportFlags.disk, "disk", "", "storage disk: local or s3 (default STORAGE_DISK)")
	exportCmd.Flags().StringVar(&exportFlags.path, "path", "", "object path (default exports/products-<timestamp>.json)")
}
