package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	CreateCategory(ctx context.Context, db *gorm.DB, category *Category) error
	FindCategoryByName(ctx context.Context, db *gorm.DB, name string) (*Category, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Product, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]Product, error)
	// FindAvailable returns active products offered by at least one restaurant.
	FindAvailable(ctx context.Context, db *gorm.DB) ([]Product, error)
}
