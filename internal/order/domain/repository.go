package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	Status *Status
	// Cursor position: rows strictly after (RegisteredAt, ID).
	AfterRegisteredAt *time.Time
	AfterID           int64
	Limit             int
}

type Repository interface {
	// Create inserts the order and its items. Callers run it inside a transaction.
	Create(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, error)
	// UpdateStatus applies fields only while the row is still in status from.
	// It reports whether a row was updated.
	UpdateStatus(ctx context.Context, db *gorm.DB, id int64, from Status, fields map[string]any) (bool, error)
}
