package domain

import (
	"context"
	"time"
)

// Store persists resolved places keyed by the exact address string.
type Store interface {
	// GetByAddress returns nil without error when the address is not cached.
	GetByAddress(ctx context.Context, address string) (*Coordinate, error)
	// GetManyByAddress returns only the addresses that are cached.
	GetManyByAddress(ctx context.Context, addresses []string) (map[string]Coordinate, error)
	// Upsert inserts or overwrites the place for address; last writer wins.
	Upsert(ctx context.Context, address string, coord Coordinate, resolvedAt time.Time) error
}

// Provider turns a free-text address into a coordinate using an external service.
type Provider interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
}
