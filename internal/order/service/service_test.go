package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dispatch/internal/clock"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	"github.com/smallbiznis/dispatch/internal/migration"
	"github.com/smallbiznis/dispatch/internal/notify"
	"github.com/smallbiznis/dispatch/internal/order/domain"
	"github.com/smallbiznis/dispatch/internal/order/repository"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	productrepo "github.com/smallbiznis/dispatch/internal/product/repository"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	restaurantrepo "github.com/smallbiznis/dispatch/internal/restaurant/repository"
	"github.com/smallbiznis/dispatch/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.StatusChanged
	err    error
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, event notify.StatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type warmingGeocoder struct {
	geocodedomain.Service
	resolved chan string
}

func (g *warmingGeocoder) Resolve(_ context.Context, address string) (geocodedomain.Coordinate, error) {
	g.resolved <- address
	return geocodedomain.Coordinate{}, errors.New("provider down")
}

type fixture struct {
	svc       domain.Service
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	publisher *recordingPublisher

	burger productdomain.Product
	fries  productdomain.Product
	soda   productdomain.Product
}

func newFixture(t *testing.T, geocoder geocodedomain.Service) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		db:        conn,
		node:      node,
		clock:     clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		publisher: &recordingPublisher{},
	}
	f.burger = f.product(t, "burger", "349.90")
	f.fries = f.product(t, "fries", "99.50")
	f.soda = f.product(t, "soda", "120")

	f.svc = New(Params{
		DB:             conn,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          f.clock,
		Repo:           repository.Provide(),
		ProductRepo:    productrepo.Provide(),
		RestaurantRepo: restaurantrepo.Provide(),
		Geocoder:       geocoder,
		Publisher:      f.publisher,
	})
	return f
}

func (f *fixture) product(t *testing.T, code, price string) productdomain.Product {
	t.Helper()
	p := productdomain.Product{
		ID:     f.node.Generate().Int64(),
		Code:   code,
		Name:   code,
		Price:  decimal.RequireFromString(price),
		Active: true,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) restaurant(t *testing.T, name string, available ...productdomain.Product) restaurantdomain.Restaurant {
	t.Helper()
	r := restaurantdomain.Restaurant{
		ID:      f.node.Generate().Int64(),
		Name:    name,
		Address: name + " street 1",
	}
	for _, p := range available {
		r.MenuItems = append(r.MenuItems, restaurantdomain.MenuItem{
			ID:           f.node.Generate().Int64(),
			ProductID:    p.ID,
			Availability: true,
		})
	}
	require.NoError(t, f.db.Create(&r).Error)
	return r
}

func (f *fixture) register(t *testing.T, products ...productdomain.Product) *domain.Response {
	t.Helper()
	req := domain.RegisterRequest{
		Firstname: "Ivan",
		Lastname:  "Petrov",
		Phone:     "+7 900 000-00-00",
		Address:   "Central Square 1",
	}
	for _, p := range products {
		req.Products = append(req.Products, domain.ItemRequest{
			ProductID: snowflake.ID(p.ID).String(),
			Quantity:  2,
		})
	}
	resp, err := f.svc.Register(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func id(v int64) string { return snowflake.ID(v).String() }

func TestRegisterCapturesCatalogPrices(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.register(t, f.burger, f.fries)
	assert.Equal(t, domain.StatusAccepted, resp.Status)
	assert.Equal(t, domain.PaymentCash, resp.PaymentMethod)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("898.80")))
	require.Len(t, resp.Items, 2)

	require.NoError(t, f.db.Model(&productdomain.Product{}).
		Where("id = ?", f.burger.ID).
		Update("price", decimal.NewFromInt(1)).Error)

	got, err := f.svc.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("898.80")))
	assert.Equal(t, "burger", got.Items[0].Name)
}

func TestRegisterMergesRepeatedProducts(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		Firstname: "Ivan",
		Lastname:  "Petrov",
		Phone:     "+7 900 000-00-00",
		Address:   "Central Square 1",
		Products: []domain.ItemRequest{
			{ProductID: id(f.soda.ID), Quantity: 1},
			{ProductID: id(f.soda.ID), Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(360)))
}

func TestRegisterUnknownProductRollsBack(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		Firstname: "Ivan",
		Lastname:  "Petrov",
		Phone:     "+7 900 000-00-00",
		Address:   "Central Square 1",
		Products: []domain.ItemRequest{
			{ProductID: id(f.burger.ID), Quantity: 1},
			{ProductID: f.node.Generate().String(), Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	var orders, items int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&domain.OrderItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, nil)
	valid := func() domain.RegisterRequest {
		return domain.RegisterRequest{
			Firstname: "Ivan",
			Lastname:  "Petrov",
			Phone:     "+7 900 000-00-00",
			Address:   "Central Square 1",
			Products:  []domain.ItemRequest{{ProductID: id(f.burger.ID), Quantity: 1}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*domain.RegisterRequest)
		want   error
	}{
		{"no products", func(r *domain.RegisterRequest) { r.Products = nil }, domain.ErrInvalidOrder},
		{"zero quantity", func(r *domain.RegisterRequest) { r.Products[0].Quantity = 0 }, domain.ErrInvalidQuantity},
		{"missing phone", func(r *domain.RegisterRequest) { r.Phone = " " }, domain.ErrInvalidCustomer},
		{"missing address", func(r *domain.RegisterRequest) { r.Address = "" }, domain.ErrInvalidAddress},
		{"unknown payment", func(r *domain.RegisterRequest) { r.PaymentMethod = "barter" }, domain.ErrInvalidPaymentMethod},
		{"malformed product", func(r *domain.RegisterRequest) { r.Products[0].ProductID = "x" }, domain.ErrProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(&req)
			_, err := f.svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegisterWarmsGeocodeCache(t *testing.T) {
	geocoder := &warmingGeocoder{resolved: make(chan string, 1)}
	f := newFixture(t, geocoder)

	f.register(t, f.burger)

	select {
	case address := <-geocoder.resolved:
		assert.Equal(t, "Central Square 1", address)
	case <-time.After(time.Second):
		t.Fatal("address was not resolved")
	}
}

func TestListPaginatesInRegistrationOrder(t *testing.T) {
	f := newFixture(t, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, f.register(t, f.burger).ID)
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.List(context.Background(), domain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, ids[0], first.Orders[0].ID)
	assert.Equal(t, ids[1], first.Orders[1].ID)

	second, err := f.svc.List(context.Background(), domain.ListRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, ids[2], second.Orders[0].ID)

	_, err = f.svc.List(context.Background(), domain.ListRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
	_, err = f.svc.List(context.Background(), domain.ListRequest{Status: "cooking"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestPendingReturnsAcceptedOrdersWithProducts(t *testing.T) {
	f := newFixture(t, nil)
	r := f.restaurant(t, "Star Burger", f.burger)

	accepted := f.register(t, f.burger, f.fries)
	assigned := f.register(t, f.burger)
	_, err := f.svc.AssignRestaurant(context.Background(), domain.AssignRequest{OrderID: assigned.ID, RestaurantID: id(r.ID)})
	require.NoError(t, err)

	pending, err := f.svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, accepted.ID, id(pending[0].ID))
	require.NoError(t, pending[0].Validate())
	assert.Equal(t, 2, pending[0].RequiredProducts().Len())
}

func TestAssignRestaurant(t *testing.T) {
	f := newFixture(t, nil)
	full := f.restaurant(t, "Star Burger", f.burger, f.fries)
	partial := f.restaurant(t, "Burger Shack", f.burger)
	order := f.register(t, f.burger, f.fries)
	ctx := context.Background()

	_, err := f.svc.AssignRestaurant(ctx, domain.AssignRequest{OrderID: order.ID, RestaurantID: id(partial.ID)})
	assert.ErrorIs(t, err, domain.ErrRestaurantCannotFulfill)

	_, err = f.svc.AssignRestaurant(ctx, domain.AssignRequest{OrderID: order.ID, RestaurantID: f.node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrRestaurantNotFound)

	resp, err := f.svc.AssignRestaurant(ctx, domain.AssignRequest{OrderID: order.ID, RestaurantID: id(full.ID)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssembling, resp.Status)
	assert.Equal(t, id(full.ID), resp.RestaurantID)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, notify.StatusChanged{
		OrderID:      order.ID,
		RestaurantID: id(full.ID),
		From:         "accepted",
		To:           "assembling",
		OccurredAt:   f.clock.Now(),
	}, f.publisher.events[0])

	_, err = f.svc.AssignRestaurant(ctx, domain.AssignRequest{OrderID: order.ID, RestaurantID: id(full.ID)})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestAssignRestaurantIgnoresUnavailableItems(t *testing.T) {
	f := newFixture(t, nil)
	r := f.restaurant(t, "Star Burger", f.burger)
	require.NoError(t, f.db.Model(&restaurantdomain.MenuItem{}).
		Where("restaurant_id = ?", r.ID).
		Update("availability", false).Error)
	order := f.register(t, f.burger)

	_, err := f.svc.AssignRestaurant(context.Background(), domain.AssignRequest{OrderID: order.ID, RestaurantID: id(r.ID)})
	assert.ErrorIs(t, err, domain.ErrRestaurantCannotFulfill)
}

func TestAdvanceStatusLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	r := f.restaurant(t, "Star Burger", f.burger)
	order := f.register(t, f.burger)
	ctx := context.Background()

	_, err := f.svc.AdvanceStatus(ctx, domain.AdvanceStatusRequest{OrderID: order.ID, Status: domain.StatusDelivering})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = f.svc.AssignRestaurant(ctx, domain.AssignRequest{OrderID: order.ID, RestaurantID: id(r.ID)})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	calledAt := f.clock.Now()
	resp, err := f.svc.AdvanceStatus(ctx, domain.AdvanceStatusRequest{OrderID: order.ID, Status: "Delivering"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivering, resp.Status)
	require.NotNil(t, resp.CalledAt)
	assert.True(t, resp.CalledAt.Equal(calledAt))
	assert.Nil(t, resp.DeliveredAt)

	_, err = f.svc.AdvanceStatus(ctx, domain.AdvanceStatusRequest{OrderID: order.ID, Status: domain.StatusAssembling})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	f.clock.Advance(20 * time.Minute)
	resp, err = f.svc.AdvanceStatus(ctx, domain.AdvanceStatusRequest{OrderID: order.ID, Status: domain.StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, resp.DeliveredAt)
	assert.True(t, resp.DeliveredAt.Equal(f.clock.Now()))
	assert.True(t, resp.CalledAt.Equal(calledAt))

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	require.NotNil(t, stored.DeliveredAt)

	_, err = f.svc.AdvanceStatus(ctx, domain.AdvanceStatusRequest{OrderID: order.ID, Status: domain.StatusCompleted})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	require.Len(t, f.publisher.events, 3)
	assert.Equal(t, "delivering", f.publisher.events[1].To)
	assert.Equal(t, "completed", f.publisher.events[2].To)
}

func TestAdvanceStatusSurvivesPublisherFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = errors.New("broker down")
	r := f.restaurant(t, "Star Burger", f.burger)
	order := f.register(t, f.burger)

	resp, err := f.svc.AssignRestaurant(context.Background(), domain.AssignRequest{OrderID: order.ID, RestaurantID: id(r.ID)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssembling, resp.Status)
}

func TestAdvanceStatusRejectsUnknownInput(t *testing.T) {
	f := newFixture(t, nil)
	order := f.register(t, f.burger)

	_, err := f.svc.AdvanceStatus(context.Background(), domain.AdvanceStatusRequest{OrderID: order.ID, Status: "cooking"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.AdvanceStatus(context.Background(), domain.AdvanceStatusRequest{OrderID: "nope", Status: domain.StatusCompleted})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.Get(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
