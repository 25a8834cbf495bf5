package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/storage"
)

// Snapshot is the document written by Export.
type Snapshot struct {
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Products   []models.Product `json:"products"`
}

// ProductLister reads every product from the store.
type ProductLister interface {
	ListAll(ctx context.Context) ([]models.Product, error)
}

// ExportService writes catalogue snapshots to a storage disk. It reads the
// store directly so a snapshot never reflects a stale cache.
type ExportService struct {
	products ProductLister
	now      func() time.Time
}

func NewExportService(products ProductLister) *ExportService {
	return &ExportService{products: products, now: time.Now}
}

// DefaultExportPath names a snapshot after the time it was taken.
func DefaultExportPath(at time.Time) string {
	return fmt.Sprintf("exports/products-%s.json", at.UTC().Format("20060102T150405Z"))
}

// Export writes a snapshot to path on disk (DefaultExportPath when empty)
// and returns the path written.
func (s *ExportService) Export(ctx context.Context, disk storage.Disk, path string) (string, Snapshot, error) {
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return "", Snapshot{}, err
	}

	snap := Snapshot{
		ExportedAt: s.now().UTC(),
		Count:      len(products),
		Products:   products,
	}
	if snap.Products == nil {
		snap.Products = []models.Product{}
	}
	if path == "" {
		path = DefaultExportPath(snap.ExportedAt)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := disk.Put(ctx, path, data); err != nil {
		return "", Snapshot{}, err
	}

	logger.WithCtx(ctx).Info("catalogue exported", "path", path, "products", snap.Count)
	return path, snap, nil
}
