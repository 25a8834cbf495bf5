package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

// UpdateResult is the outcome of a conditional update. When Conflict is
// true the update was not applied and Record holds the current stored state.
type UpdateResult struct {
	Record   models.Product
	Conflict bool
}

// ProductRepository is the gorm-backed product store.
type ProductRepository struct {
	db *gorm.DB

	newVersion func() models.Version
	now        func() time.Time
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{
		db:         db,
		newVersion: randomVersion,
		now:        time.Now,
	}
}

func randomVersion() models.Version {
	id := uuid.New()
	return models.Version(id[:])
}

// Insert assigns id, dateCreated and the initial version, rounds the price
// to the column's scale and persists p.
// A product whose case-folded name is already stored is rejected with
// DuplicateKey.
func (r *ProductRepository) Insert(ctx context.Context, p models.Product) (models.Product, error) {
	defer metrics.ObserveDBQuery("insert", time.Now())

	p.ID = 0
	p.NameKey = models.NameKey(p.Name)
	p.Price = p.Price.Round(models.PriceScale)
	p.DateCreated = r.now().UTC().Truncate(time.Microsecond)
	p.Version = r.newVersion()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, p.NameKey, 0)
		if err != nil {
			return err
		}
		if taken {
			return DuplicateKeyError(p.Name)
		}
		return tx.Create(&p).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return models.Product{}, DuplicateKeyError(p.Name)
		}
		return models.Product{}, storeError("insert", err)
	}
	return p, nil
}

// FindByID returns the product or NotFound.
func (r *ProductRepository) FindByID(ctx context.Context, id uint) (models.Product, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var p models.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, NotFoundError(id)
	}
	if err != nil {
		return models.Product{}, storeError("find", err)
	}
	return p, nil
}

// FindByName looks a product up by its case-folded name.
func (r *ProductRepository) FindByName(ctx context.Context, name string) (models.Product, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var p models.Product
	err := r.db.WithContext(ctx).Where("name_key = ?", models.NameKey(name)).First(&p).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, errors.WithContext(errors.Newf(errors.CodeNotFound, "product %q not found", name), "name", name)
	}
	if err != nil {
		return models.Product{}, storeError("find", err)
	}
	return p, nil
}

// ListAll returns every product ordered by id.
func (r *ProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	defer metrics.ObserveDBQuery("list", time.Now())

	var products []models.Product
	if err := r.db.WithContext(ctx).Order("id asc").Find(&products).Error; err != nil {
		return nil, storeError("list", err)
	}
	return products, nil
}

func nameTaken(db *gorm.DB, key string, excludeID uint) (bool, error) {
	q := db.Model(&models.Product{}).Where("name_key = ?", key)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update applies fields when expected matches the stored version, assigning
// a fresh version. The check and the write are a single conditional UPDATE,
// so of two updates racing on the same prior version exactly one succeeds.
// A stale version yields UpdateResult{Conflict: true} with the current row.
func (r *ProductRepository) Update(ctx context.Context, id uint, expected models.Version, fields models.ProductFields) (UpdateResult, error) {
	defer metrics.ObserveDBQuery("update", time.Now())

	var result UpdateResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Product
		if err := tx.First(&current, id).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError(id)
			}
			return err
		}
		if !current.Version.Equal(expected) {
			result = UpdateResult{Record: current, Conflict: true}
			return nil
		}

		changes := map[string]interface{}{}
		if fields.Name != nil {
			key := models.NameKey(*fields.Name)
			taken, err := nameTaken(tx, key, id)
			if err != nil {
				return err
			}
			if taken {
				return DuplicateKeyError(*fields.Name)
			}
			changes["name"] = *fields.Name
			changes["name_key"] = key
		}
		if fields.Price != nil {
			changes["price"] = fields.Price.Round(models.PriceScale)
		}
		if fields.Available != nil {
			changes["available"] = *fields.Available
		}
		if fields.Description != nil {
			changes["description"] = *fields.Description
		}
		next := r.newVersion()
		changes["version"] = []byte(next)

		res := tx.Model(&models.Product{}).
			Where("id = ? AND version = ?", id, []byte(expected)).
			Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race between the read above and the write.
			var latest models.Product
			if err := tx.First(&latest, id).Error; err != nil {
				if stderrors.Is(err, gorm.ErrRecordNotFound) {
					return NotFoundError(id)
				}
				return err
			}
			result = UpdateResult{Record: latest, Conflict: true}
			return nil
		}

		var updated models.Product
		if err := tx.First(&updated, id).Error; err != nil {
			return err
		}
		result = UpdateResult{Record: updated}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) && fields.Name != nil {
			return UpdateResult{}, DuplicateKeyError(*fields.Name)
		}
		return UpdateResult{}, storeError("update", err)
	}
	return result, nil
}

// Delete removes the product or returns NotFound.
func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	defer metrics.ObserveDBQuery("delete", time.Now())

	res := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return storeError("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFoundError(id)
	}
	return nil
}

// Ping checks that the database answers.
func (r *ProductRepository) Ping(ctx context.Context) error {
	defer metrics.ObserveDBQuery("ping", time.Now())

	sqlDB, err := r.db.DB()
	if err != nil {
		return storeError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}
