package domain

import (
	"testing"

	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	"github.com/stretchr/testify/assert"
)

func TestAvailableProducts(t *testing.T) {
	r := Restaurant{
		ID: 1,
		MenuItems: []MenuItem{
			{ProductID: 10, Availability: true},
			{ProductID: 11, Availability: false},
			{ProductID: 12, Availability: true},
		},
	}

	got := AvailableProducts(r)
	assert.Equal(t, productdomain.NewIDSet(10, 12), got)
	assert.False(t, got.Has(11))
}

func TestAvailableProductsEmptyMenu(t *testing.T) {
	got := AvailableProducts(Restaurant{ID: 1})
	assert.Equal(t, 0, got.Len())
}

func TestNewSnapshot(t *testing.T) {
	r := Restaurant{
		ID:      7,
		Name:    "Star Burger Arbat",
		Address: "Arbat 1",
		MenuItems: []MenuItem{
			{ProductID: 3, Availability: true},
			{ProductID: 4, Availability: false},
		},
	}

	snap := NewSnapshot(r)
	assert.Equal(t, int64(7), snap.RestaurantID)
	assert.Equal(t, "Star Burger Arbat", snap.Name)
	assert.Equal(t, "Arbat 1", snap.Address)
	assert.Equal(t, []int64{3}, snap.Available.Slice())
}
