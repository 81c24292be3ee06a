package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestTotalUsesCapturedPrices(t *testing.T) {
	o := Order{Items: []OrderItem{
		{ProductID: 1, Quantity: 2, Price: d("199.90"), Product: &productdomain.Product{ID: 1, Price: d("999")}},
		{ProductID: 2, Quantity: 3, Price: d("0.10")},
		{ProductID: 3, Quantity: 1, Price: d("50")},
	}}

	assert.True(t, o.Total().Equal(d("450.10")), "got %s", o.Total())
}

func TestTotalOfEmptyOrderIsZero(t *testing.T) {
	assert.True(t, Order{}.Total().IsZero())
}

func TestTotalAvoidsFloatDrift(t *testing.T) {
	items := make([]OrderItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, OrderItem{ProductID: int64(i), Quantity: 1, Price: d("0.10")})
	}
	assert.Equal(t, "1", Order{Items: items}.Total().String())
}

func TestRequiredProductsDeduplicates(t *testing.T) {
	o := Order{Items: []OrderItem{
		{ProductID: 5, Quantity: 1},
		{ProductID: 5, Quantity: 2},
		{ProductID: 9, Quantity: 1},
	}}
	assert.Equal(t, productdomain.NewIDSet(5, 9), o.RequiredProducts())
}

func TestValidate(t *testing.T) {
	burger := &productdomain.Product{ID: 1}

	assert.ErrorIs(t, Order{}.Validate(), ErrInvalidOrder)

	missing := Order{Items: []OrderItem{
		{ProductID: 1, Quantity: 1, Product: burger},
		{ProductID: 2, Quantity: 1},
	}}
	assert.ErrorIs(t, missing.Validate(), ErrProductNotFound)

	ok := Order{Items: []OrderItem{{ProductID: 1, Quantity: 1, Product: burger}}}
	assert.NoError(t, ok.Validate())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusAccepted.CanTransitionTo(StatusAssembling))
	assert.True(t, StatusAccepted.CanTransitionTo(StatusDelivering))
	assert.True(t, StatusDelivering.CanTransitionTo(StatusCompleted))

	assert.False(t, StatusAssembling.CanTransitionTo(StatusAccepted))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusDelivering))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusAccepted.CanTransitionTo(Status("cancelled")))
	assert.False(t, Status("unknown").CanTransitionTo(StatusCompleted))
}
