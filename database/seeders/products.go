package seeders

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
)

func init() { Register("products", SeedProducts) }

var sampleProducts = []models.Product{
	{Name: "Espresso Machine", Price: decimal.RequireFromString("349.00"), Available: true, Description: "15 bar pump, steam wand"},
	{Name: "Burr Grinder", Price: decimal.RequireFromString("129.50"), Available: true, Description: "40 grind settings"},
	{Name: "Milk Frother", Price: decimal.RequireFromString("24.99"), Available: false, Description: "Handheld, battery powered"},
	{Name: "Pour-over Kettle", Price: decimal.RequireFromString("59.00"), Available: true},
}

// SeedProducts inserts the sample catalogue, skipping names already taken.
func SeedProducts(ctx context.Context, db *gorm.DB) error {
	repo := repositories.NewProductRepository(db)
	for _, p := range sampleProducts {
		if _, err := repo.Insert(ctx, p); err != nil && !repositories.IsDuplicateKey(err) {
			return err
		}
	}
	return nil
}
