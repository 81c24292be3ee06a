package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
)

type Status string

const (
	StatusAccepted   Status = "accepted"
	StatusAssembling Status = "assembling"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
)

var statusRank = map[Status]int{
	StatusAccepted:   0,
	StatusAssembling: 1,
	StatusDelivering: 2,
	StatusCompleted:  3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo allows forward moves only. Completed is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentCard
}

type Order struct {
	ID            int64         `json:"id" gorm:"primaryKey"`
	Firstname     string        `json:"firstname" gorm:"type:text;not null"`
	Lastname      string        `json:"lastname" gorm:"type:text;not null"`
	Phone         string        `json:"phone" gorm:"type:text;not null"`
	Address       string        `json:"address" gorm:"type:text;not null"`
	Status        Status        `json:"status" gorm:"type:text;not null;index:ix_orders_status,priority:1"`
	PaymentMethod PaymentMethod `json:"payment_method" gorm:"type:text;not null"`
	Comment       string        `json:"comment" gorm:"type:text;not null"`
	RestaurantID  *int64        `json:"restaurant_id,omitempty" gorm:"column:restaurant_id"`
	RegisteredAt  time.Time     `json:"registered_at" gorm:"not null;index:ix_orders_status,priority:2"`
	CalledAt      *time.Time    `json:"called_at,omitempty"`
	DeliveredAt   *time.Time    `json:"delivered_at,omitempty"`
	Items         []OrderItem   `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// OrderItem carries the price captured when the order was registered.
type OrderItem struct {
	ID        int64                  `json:"id" gorm:"primaryKey"`
	OrderID   int64                  `json:"order_id" gorm:"not null;index:ix_order_items_order"`
	ProductID int64                  `json:"product_id" gorm:"not null"`
	Product   *productdomain.Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int                    `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal        `json:"price" gorm:"type:numeric(8,2);not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// RequiredProducts returns the distinct product ids referenced by the order.
func (o Order) RequiredProducts() productdomain.IDSet {
	set := productdomain.NewIDSet()
	for _, item := range o.Items {
		set.Add(item.ProductID)
	}
	return set
}

// Total sums quantity times captured price over every line.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Validate checks the order can enter a matching pass. Items must have their
// Product loaded; a nil Product means the product no longer exists.
func (o Order) Validate() error {
	if o.RequiredProducts().Len() == 0 {
		return ErrInvalidOrder
	}
	for _, item := range o.Items {
		if item.Product == nil || item.Product.ID != item.ProductID {
			return fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
	}
	return nil
}
