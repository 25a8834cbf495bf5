package seeders

import (
	"context"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/logger"
)

func init() { Register("users", SeedUsers) }

// SeedUsers creates the admin account from SEED_ADMIN_EMAIL and
// SEED_ADMIN_PASSWORD unless a user with that email exists.
func SeedUsers(ctx context.Context, db *gorm.DB) error {
	email := config.Get("SEED_ADMIN_EMAIL", "admin@example.com")
	password := config.Get("SEED_ADMIN_PASSWORD", "change-me-please")

	users := repositories.NewUserRepository(db)
	if _, err := users.FindByEmail(ctx, email); err == nil {
		logger.Debug("seed: admin already present", "email", email)
		return nil
	} else if !repositories.IsNotFound(err) {
		return err
	}

	svc := services.NewAuthService(users, auth.FromConfig())
	_, err := svc.Register(ctx, "Administrator", email, password, models.RoleAdmin)
	return err
}
