package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, restaurant *domain.Restaurant) error {
	return db.WithContext(ctx).Create(restaurant).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Restaurant, error) {
	var item domain.Restaurant
	err := db.WithContext(ctx).
		Preload("MenuItems", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("product_id ASC")
		}).
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindAllWithMenu(ctx context.Context, db *gorm.DB) ([]domain.Restaurant, error) {
	var items []domain.Restaurant
	err := db.WithContext(ctx).
		Preload("MenuItems").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpsertMenuItem inserts the menu item or updates the availability of the
// existing (restaurant, product) pair.
func (r *repo) UpsertMenuItem(ctx context.Context, db *gorm.DB, item *domain.MenuItem) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"availability", "updated_at"}),
		}).
		Create(item).Error
}

func (r *repo) FindMenuItem(ctx context.Context, db *gorm.DB, restaurantID, productID int64) (*domain.MenuItem, error) {
	var item domain.MenuItem
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND product_id = ?", restaurantID, productID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
