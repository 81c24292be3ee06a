// Package ranking orders restaurants by straight-line distance from a
// delivery address.
package ranking

import (
	"math"
	"sort"

	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
)

// EarthRadiusKm is the mean radius of the spherical Earth model.
const EarthRadiusKm = 6371.0

// Located is a restaurant with a resolved position.
type Located struct {
	RestaurantID int64
	Name         string
	Address      string
	Coordinate   geocodedomain.Coordinate
}

type Candidate struct {
	RestaurantID int64  `json:"restaurant_id,string"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	DistanceKm   int    `json:"distance_km"`
}

// DistanceKm returns the haversine great-circle distance in whole kilometres,
// truncated toward zero.
func DistanceKm(a, b geocodedomain.Coordinate) int {
	// Sort the endpoints so the floating point evaluation is identical
	// in both directions.
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lon < a.Lon) {
		a, b = b, a
	}

	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, math.Max(0, h))

	return int(2 * EarthRadiusKm * math.Asin(math.Sqrt(h)))
}

// Rank returns every restaurant ordered nearest first. Equal distances are
// ordered by restaurant id.
func Rank(origin geocodedomain.Coordinate, restaurants []Located) []Candidate {
	out := make([]Candidate, 0, len(restaurants))
	for _, r := range restaurants {
		out = append(out, Candidate{
			RestaurantID: r.RestaurantID,
			Name:         r.Name,
			Address:      r.Address,
			DistanceKm:   DistanceKm(origin, r.Coordinate),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].RestaurantID < out[j].RestaurantID
	})
	return out
}

// Limit keeps the first max candidates. max <= 0 keeps all of them.
func Limit(candidates []Candidate, max int) []Candidate {
	if max <= 0 || len(candidates) <= max {
		return candidates
	}
	return candidates[:max]
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
