package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dispatch/internal/config"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type demoProduct struct {
	code     string
	name     string
	category string
	price    string
}

type demoRestaurant struct {
	name    string
	address string
	phone   string
	menu    []string
}

var demoProducts = []demoProduct{
	{"cheeseburger", "Cheeseburger", "Burgers", "189.00"},
	{"double-burger", "Double Burger", "Burgers", "289.00"},
	{"fries", "Fries", "Sides", "99.00"},
	{"cola", "Cola", "Drinks", "79.00"},
}

var demoRestaurants = []demoRestaurant{
	{"Star Burger Arbat", "Moscow, Novy Arbat 15", "+7 495 000-00-01", []string{"cheeseburger", "double-burger", "fries", "cola"}},
	{"Star Burger Tverskaya", "Moscow, Tverskaya 6", "+7 495 000-00-02", []string{"cheeseburger", "fries"}},
	{"Star Burger Kitay-Gorod", "Moscow, Maroseyka 2", "+7 495 000-00-03", []string{"double-burger", "cola"}},
}

var Module = fx.Module("seed",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if !cfg.DBSeed {
			return nil
		}
		created, err := EnsureDemoCatalog(context.Background(), conn, node)
		if err != nil {
			return err
		}
		log.Named("seed").Info("demo catalog ensured", zap.Bool("created", created))
		return nil
	}),
)

// EnsureDemoCatalog loads a small menu and three restaurants into an empty
// catalog. It reports whether anything was written.
func EnsureDemoCatalog(ctx context.Context, db *gorm.DB, node *snowflake.Node) (bool, error) {
	if db == nil || node == nil {
		return false, errors.New("seed database handle and id node are required")
	}

	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&productdomain.Product{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		categories := map[string]int64{}
		products := map[string]int64{}
		for _, p := range demoProducts {
			categoryID, ok := categories[p.category]
			if !ok {
				category := productdomain.Category{ID: node.Generate().Int64(), Name: p.category, CreatedAt: now}
				if err := tx.Create(&category).Error; err != nil {
					return err
				}
				categoryID = category.ID
				categories[p.category] = categoryID
			}

			product := productdomain.Product{
				ID:         node.Generate().Int64(),
				Code:       p.code,
				Name:       p.name,
				CategoryID: &categoryID,
				Price:      decimal.RequireFromString(p.price),
				Active:     true,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.Omit("Category").Create(&product).Error; err != nil {
				return err
			}
			products[p.code] = product.ID
		}

		for _, r := range demoRestaurants {
			restaurant := restaurantdomain.Restaurant{
				ID:           node.Generate().Int64(),
				Name:         r.name,
				Address:      r.address,
				ContactPhone: r.phone,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			for _, code := range r.menu {
				restaurant.MenuItems = append(restaurant.MenuItems, restaurantdomain.MenuItem{
					ID:           node.Generate().Int64(),
					ProductID:    products[code],
					Availability: true,
					UpdatedAt:    now,
				})
			}
			if err := tx.Create(&restaurant).Error; err != nil {
				return err
			}
		}

		created = true
		return nil
	})
	return created, err
}
