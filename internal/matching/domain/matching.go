package domain

import (
	"context"

	"github.com/shopspring/decimal"
	orderdomain "github.com/smallbiznis/dispatch/internal/order/domain"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	"github.com/smallbiznis/dispatch/internal/ranking"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
)

type Service interface {
	// MatchBatch ranks candidate restaurants for every order. Per-order
	// failures are reported in Result.Err; the returned error is only set
	// when the whole pass could not run or ctx was cancelled.
	MatchBatch(ctx context.Context, orders []orderdomain.Order) ([]Result, error)
	// MatchPending runs MatchBatch over every accepted order.
	MatchPending(ctx context.Context) ([]Result, error)
}

// Result is the transient outcome of matching one order.
type Result struct {
	OrderID    int64
	Total      decimal.Decimal
	Candidates []ranking.Candidate
	Err        error
}

// Matches reports whether the restaurant can fulfil the whole required set
// on its own. An empty required set matches nothing.
func Matches(required productdomain.IDSet, snap restaurantdomain.AvailabilitySnapshot) bool {
	if required.Len() == 0 {
		return false
	}
	return required.SubsetOf(snap.Available)
}
