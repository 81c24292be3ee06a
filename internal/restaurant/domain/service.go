package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	SetAvailability(ctx context.Context, req SetAvailabilityRequest) (*MenuItemResponse, error)
	// Snapshots rebuilds the availability view of every restaurant from the
	// current menu state.
	Snapshots(ctx context.Context) ([]AvailabilitySnapshot, error)
}

type MenuEntry struct {
	ProductID string `json:"product_id"`
	Available *bool  `json:"availability"`
}

type CreateRequest struct {
	Name         string      `json:"name"`
	Address      string      `json:"address"`
	ContactPhone string      `json:"contact_phone"`
	Menu         []MenuEntry `json:"menu"`
}

type SetAvailabilityRequest struct {
	RestaurantID string
	ProductID    string
	Available    bool
}

type MenuItemResponse struct {
	ProductID    string    `json:"product_id"`
	Availability bool      `json:"availability"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Response struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Address      string             `json:"address"`
	ContactPhone string             `json:"contact_phone,omitempty"`
	Menu         []MenuItemResponse `json:"menu"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidAddress = errors.New("invalid_address")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
	ErrUnknownProduct = errors.New("unknown_product")
	ErrDuplicateMenu  = errors.New("duplicate_menu_item")
)
