package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/dispatch/internal/geocode/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lookupChunk keeps IN lists under the bind parameter limits of every dialect.
const lookupChunk = 500

type PlaceStore struct {
	db *gorm.DB
}

func NewPlaceStore(db *gorm.DB) *PlaceStore {
	return &PlaceStore{db: db}
}

func (s *PlaceStore) GetByAddress(ctx context.Context, address string) (*domain.Coordinate, error) {
	var place domain.Place
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&place).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	coord := place.Coordinate()
	return &coord, nil
}

func (s *PlaceStore) GetManyByAddress(ctx context.Context, addresses []string) (map[string]domain.Coordinate, error) {
	out := make(map[string]domain.Coordinate, len(addresses))
	for start := 0; start < len(addresses); start += lookupChunk {
		end := start + lookupChunk
		if end > len(addresses) {
			end = len(addresses)
		}

		var places []domain.Place
		err := s.db.WithContext(ctx).
			Where("address IN ?", addresses[start:end]).
			Find(&places).Error
		if err != nil {
			return nil, err
		}
		for _, place := range places {
			out[place.Address] = place.Coordinate()
		}
	}
	return out, nil
}

func (s *PlaceStore) Upsert(ctx context.Context, address string, coord domain.Coordinate, resolvedAt time.Time) error {
	place := domain.Place{
		Address:        address,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		LastResolvedAt: resolvedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"lat", "lon", "last_resolved_at"}),
		}).
		Create(&place).Error
	if err != nil {
		return fmt.Errorf("%w: upsert %q: %v", domain.ErrStoreConflict, address, err)
	}
	return nil
}
