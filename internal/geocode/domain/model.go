package domain

import (
	"fmt"
	"time"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Place caches the coordinate of an exact address string. Addresses are
// stored as given, so differently formatted spellings of one location are
// separate rows.
type Place struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Address        string    `gorm:"type:text;not null;uniqueIndex:ux_places_address"`
	Lat            float64   `gorm:"not null"`
	Lon            float64   `gorm:"not null"`
	LastResolvedAt time.Time `gorm:"not null"`
}

func (Place) TableName() string { return "places" }

func (p Place) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}
