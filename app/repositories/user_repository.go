package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jmgilman/go/errors"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

// UserRepository handles database operations for User.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks up a user by their email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return user, errors.New(errors.CodeNotFound, "user not found")
	}
	if err != nil {
		return user, storeError("find", err)
	}
	return user, nil
}

// FindByID looks up a user by primary key.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return user, errors.New(errors.CodeNotFound, "user not found")
	}
	if err != nil {
		return user, storeError("find", err)
	}
	return user, nil
}

// Create persists a new user record. The password must already be hashed.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.WithContext(errors.Newf(errors.CodeAlreadyExists, "user %s already exists", user.Email), "email", user.Email)
		}
		return storeError("insert", err)
	}
	return nil
}
