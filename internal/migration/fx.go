package migration

import (
	"strings"

	"github.com/smallbiznis/dispatch/internal/config"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	orderdomain "github.com/smallbiznis/dispatch/internal/order/domain"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBMigrate {
			return nil
		}

		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// golang-migrate only ships the postgres driver here; other dialects
		// get their schema from the models.
		log.Named("migration").Info("auto-migrating schema", zap.String("dialect", cfg.DBType))
		return AutoMigrate(conn)
	}),
)

// AutoMigrate creates the schema from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&productdomain.Category{},
		&productdomain.Product{},
		&restaurantdomain.Restaurant{},
		&restaurantdomain.MenuItem{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&geocodedomain.Place{},
	)
}
