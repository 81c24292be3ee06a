package domain

import (
	"time"

	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
)

type Restaurant struct {
	ID           int64      `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"type:text;not null"`
	Address      string     `json:"address" gorm:"type:text;not null"`
	ContactPhone string     `json:"contact_phone" gorm:"type:text;not null"`
	MenuItems    []MenuItem `json:"menu_items,omitempty" gorm:"foreignKey:RestaurantID"`
	CreatedAt    time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Restaurant) TableName() string { return "restaurants" }

// MenuItem lists a product on a restaurant's menu. A restaurant lists a
// given product at most once.
type MenuItem struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	RestaurantID int64     `json:"restaurant_id" gorm:"not null;uniqueIndex:ux_menu_restaurant_product,priority:1"`
	ProductID    int64     `json:"product_id" gorm:"not null;uniqueIndex:ux_menu_restaurant_product,priority:2"`
	Availability bool      `json:"availability" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MenuItem) TableName() string { return "restaurant_menu_items" }

// AvailableProducts returns the ids of the menu items currently flagged available.
func AvailableProducts(r Restaurant) productdomain.IDSet {
	set := productdomain.NewIDSet()
	for _, item := range r.MenuItems {
		if item.Availability {
			set.Add(item.ProductID)
		}
	}
	return set
}

// AvailabilitySnapshot is the view of a restaurant used for one matching pass.
type AvailabilitySnapshot struct {
	RestaurantID int64
	Name         string
	Address      string
	Available    productdomain.IDSet
}

func NewSnapshot(r Restaurant) AvailabilitySnapshot {
	return AvailabilitySnapshot{
		RestaurantID: r.ID,
		Name:         r.Name,
		Address:      r.Address,
		Available:    AvailableProducts(r),
	}
}
