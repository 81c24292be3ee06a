package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, restaurant *Restaurant) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Restaurant, error)
	FindAllWithMenu(ctx context.Context, db *gorm.DB) ([]Restaurant, error)
	UpsertMenuItem(ctx context.Context, db *gorm.DB, item *MenuItem) error
	FindMenuItem(ctx context.Context, db *gorm.DB, restaurantID, productID int64) (*MenuItem, error)
}
