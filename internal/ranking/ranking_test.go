package ranking

import (
	"math/rand"
	"testing"

	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coord(lat, lon float64) geocodedomain.Coordinate {
	return geocodedomain.Coordinate{Lat: lat, Lon: lon}
}

func TestDistanceKmKnownPairs(t *testing.T) {
	moscow := coord(55.7558, 37.6173)
	petersburg := coord(59.9343, 30.3351)

	assert.Equal(t, 633, DistanceKm(moscow, petersburg))
	assert.Equal(t, 20015, DistanceKm(coord(0, 0), coord(0, 180)))
	assert.Equal(t, 0, DistanceKm(coord(55.76, 37.61), coord(55.7601, 37.6101)))
}

func TestDistanceKmSymmetricAndZero(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a := coord(rng.Float64()*180-90, rng.Float64()*360-180)
		b := coord(rng.Float64()*180-90, rng.Float64()*360-180)

		require.Equal(t, DistanceKm(a, b), DistanceKm(b, a), "a=%v b=%v", a, b)
		require.Equal(t, 0, DistanceKm(a, a), "a=%v", a)
		require.GreaterOrEqual(t, DistanceKm(a, b), 0)
	}
}

func TestRankNearestFirstWithIDTieBreak(t *testing.T) {
	origin := coord(55.7558, 37.6173)
	same := coord(55.80, 37.70)

	got := Rank(origin, []Located{
		{RestaurantID: 30, Name: "far", Coordinate: coord(59.9343, 30.3351)},
		{RestaurantID: 20, Name: "tie-b", Coordinate: same},
		{RestaurantID: 10, Name: "tie-a", Coordinate: same},
		{RestaurantID: 40, Name: "here", Coordinate: origin},
	})

	require.Len(t, got, 4)
	assert.Equal(t, []int64{40, 10, 20, 30}, ids(got))
	assert.Equal(t, 0, got[0].DistanceKm)
	assert.Equal(t, got[1].DistanceKm, got[2].DistanceKm)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].DistanceKm, got[i].DistanceKm)
	}
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(coord(0, 0), nil))
}

func TestLimit(t *testing.T) {
	candidates := []Candidate{{RestaurantID: 1}, {RestaurantID: 2}, {RestaurantID: 3}}

	assert.Len(t, Limit(candidates, 0), 3)
	assert.Len(t, Limit(candidates, 5), 3)
	assert.Equal(t, []int64{1, 2}, ids(Limit(candidates, 2)))
}

func ids(candidates []Candidate) []int64 {
	out := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.RestaurantID)
	}
	return out
}
