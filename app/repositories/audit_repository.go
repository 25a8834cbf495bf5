package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

// AuditRepository stores the write history of products.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one audit row.
func (r *AuditRepository) Record(ctx context.Context, entry models.ProductAudit) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	entry.ID = 0
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return storeError("insert", err)
	}
	return nil
}

// History returns the audit rows of a product, oldest first. History
// outlives the product, so a deleted id still has one.
func (r *AuditRepository) History(ctx context.Context, productID uint) ([]models.ProductAudit, error) {
	defer metrics.ObserveDBQuery("list", time.Now())

	var rows []models.ProductAudit
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, storeError("list", err)
	}
	return rows, nil
}
