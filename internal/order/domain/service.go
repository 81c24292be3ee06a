package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	// Pending loads every accepted order with its items and products.
	Pending(ctx context.Context) ([]Order, error)
	AssignRestaurant(ctx context.Context, req AssignRequest) (*Response, error)
	AdvanceStatus(ctx context.Context, req AdvanceStatusRequest) (*Response, error)
}

type ItemRequest struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

type RegisterRequest struct {
	Firstname     string        `json:"firstname"`
	Lastname      string        `json:"lastname"`
	Phone         string        `json:"phonenumber"`
	Address       string        `json:"address"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Comment       string        `json:"comment"`
	Products      []ItemRequest `json:"products"`
}

type ListRequest struct {
	Status    string `form:"status"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type AssignRequest struct {
	OrderID      string
	RestaurantID string `json:"restaurant_id"`
}

type AdvanceStatusRequest struct {
	OrderID string
	Status  Status `json:"status"`
}

type ItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Response struct {
	ID            string          `json:"id"`
	Firstname     string          `json:"firstname"`
	Lastname      string          `json:"lastname"`
	Phone         string          `json:"phonenumber"`
	Address       string          `json:"address"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Comment       string          `json:"comment,omitempty"`
	RestaurantID  string          `json:"restaurant_id,omitempty"`
	Items         []ItemResponse  `json:"items"`
	Total         decimal.Decimal `json:"total"`
	RegisteredAt  time.Time       `json:"registered_at"`
	CalledAt      *time.Time      `json:"called_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}

type ListResponse struct {
	Orders        []Response `json:"orders"`
	NextPageToken string     `json:"next_page_token,omitempty"`
	HasMore       bool       `json:"has_more"`
}

var (
	ErrInvalidOrder            = errors.New("invalid_order")
	ErrProductNotFound         = errors.New("product_not_found")
	ErrInvalidQuantity         = errors.New("invalid_quantity")
	ErrInvalidCustomer         = errors.New("invalid_customer")
	ErrInvalidAddress          = errors.New("invalid_address")
	ErrInvalidPaymentMethod    = errors.New("invalid_payment_method")
	ErrInvalidStatus           = errors.New("invalid_status")
	ErrInvalidStatusTransition = errors.New("invalid_status_transition")
	ErrRestaurantNotFound      = errors.New("restaurant_not_found")
	ErrRestaurantCannotFulfill = errors.New("restaurant_cannot_fulfill")
	ErrInvalidPageToken        = errors.New("invalid_page_token")
	ErrInvalidID               = errors.New("invalid_id")
	ErrNotFound                = errors.New("not_found")
)
