package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dispatch/internal/clock"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	matchingdomain "github.com/smallbiznis/dispatch/internal/matching/domain"
	"github.com/smallbiznis/dispatch/internal/notify"
	"github.com/smallbiznis/dispatch/internal/order/domain"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"github.com/smallbiznis/dispatch/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           domain.Repository
	ProductRepo    productdomain.Repository
	RestaurantRepo restaurantdomain.Repository
	Geocoder       geocodedomain.Service `optional:"true"`
	Publisher      notify.Publisher      `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	productRepo    productdomain.Repository
	restaurantRepo restaurantdomain.Repository
	geocoder       geocodedomain.Service
	publisher      notify.Publisher
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = notify.Noop{}
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("order.service"),
		genID:          p.GenID,
		clock:          c,
		repo:           p.Repo,
		productRepo:    p.ProductRepo,
		restaurantRepo: p.RestaurantRepo,
		geocoder:       p.Geocoder,
		publisher:      publisher,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Response, error) {
	firstname := strings.TrimSpace(req.Firstname)
	lastname := strings.TrimSpace(req.Lastname)
	phone := strings.TrimSpace(req.Phone)
	if firstname == "" || lastname == "" || phone == "" {
		return nil, domain.ErrInvalidCustomer
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, domain.ErrInvalidAddress
	}
	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}
	if !method.Valid() {
		return nil, domain.ErrInvalidPaymentMethod
	}

	items, err := parseItems(req.Products)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:            s.genID.Generate().Int64(),
		Firstname:     firstname,
		Lastname:      lastname,
		Phone:         phone,
		Address:       address,
		Status:        domain.StatusAccepted,
		PaymentMethod: method,
		Comment:       strings.TrimSpace(req.Comment),
		RegisteredAt:  now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		products, err := s.productRepo.FindByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		catalog := make(map[int64]productdomain.Product, len(products))
		for _, p := range products {
			catalog[p.ID] = p
		}

		for i := range items {
			product, ok := catalog[items[i].ProductID]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, snowflake.ID(items[i].ProductID).String())
			}
			items[i].ID = s.genID.Generate().Int64()
			items[i].Price = product.Price
			items[i].Product = &product
		}
		order.Items = items
		return s.repo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order registered",
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total().StringFixed(2)),
	)
	s.warmGeocode(ctx, order.Address)

	resp := toResponse(order)
	return &resp, nil
}

// warmGeocode resolves the customer address in the background so the next
// matching pass finds it cached. Failures only get logged.
func (s *Service) warmGeocode(ctx context.Context, address string) {
	if s.geocoder == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := s.geocoder.Resolve(ctx, address); err != nil {
			s.log.Warn("geocode warm-up failed", zap.String("address", address), zap.Error(err))
		}
	}()
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	order, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(order)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	limit := pagination.Pagination{PageSize: req.PageSize}.Size()
	filter := domain.ListFilter{Limit: limit + 1}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = &status
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		after, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		filter.AfterRegisteredAt = &after
		filter.AfterID = afterID.Int64()
	}

	orders, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(orders, limit, func(o domain.Order) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        snowflake.ID(o.ID).String(),
			CreatedAt: o.RegisteredAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}

	resp := &domain.ListResponse{
		Orders:        make([]domain.Response, 0, len(orders)),
		NextPageToken: pageInfo.NextPageToken,
		HasMore:       pageInfo.HasMore,
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, toResponse(&orders[i]))
	}
	return resp, nil
}

func (s *Service) Pending(ctx context.Context) ([]domain.Order, error) {
	status := domain.StatusAccepted
	return s.repo.List(ctx, s.db, domain.ListFilter{Status: &status})
}

func (s *Service) AssignRestaurant(ctx context.Context, req domain.AssignRequest) (*domain.Response, error) {
	restaurantID, err := snowflake.ParseString(strings.TrimSpace(req.RestaurantID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var order *domain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = s.load(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusAccepted {
			return domain.ErrInvalidStatusTransition
		}
		if err := order.Validate(); err != nil {
			return err
		}

		restaurant, err := s.restaurantRepo.FindByID(ctx, tx, restaurantID.Int64())
		if err != nil {
			return err
		}
		if restaurant == nil {
			return domain.ErrRestaurantNotFound
		}
		if !matchingdomain.Matches(order.RequiredProducts(), restaurantdomain.NewSnapshot(*restaurant)) {
			return domain.ErrRestaurantCannotFulfill
		}

		id := restaurant.ID
		now := s.clock.Now()
		ok, err := s.repo.UpdateStatus(ctx, tx, order.ID, domain.StatusAccepted, map[string]any{
			"status":        domain.StatusAssembling,
			"restaurant_id": id,
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStatusTransition
		}
		order.Status = domain.StatusAssembling
		order.RestaurantID = &id
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("restaurant assigned",
		zap.Int64("order_id", order.ID),
		zap.Int64("restaurant_id", *order.RestaurantID),
	)
	s.publish(ctx, order, domain.StatusAccepted)

	resp := toResponse(order)
	return &resp, nil
}

func (s *Service) AdvanceStatus(ctx context.Context, req domain.AdvanceStatusRequest) (*domain.Response, error) {
	next := domain.Status(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if !next.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var (
		order *domain.Order
		from  domain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.load(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !from.CanTransitionTo(next) {
			return domain.ErrInvalidStatusTransition
		}
		// Leaving accepted goes through AssignRestaurant.
		if order.RestaurantID == nil {
			return domain.ErrInvalidStatusTransition
		}

		now := s.clock.Now()
		fields := map[string]any{
			"status":     next,
			"updated_at": now,
		}
		if (next == domain.StatusDelivering || next == domain.StatusCompleted) && order.CalledAt == nil {
			fields["called_at"] = now
			order.CalledAt = &now
		}
		if next == domain.StatusCompleted {
			fields["delivered_at"] = now
			order.DeliveredAt = &now
		}

		ok, err := s.repo.UpdateStatus(ctx, tx, order.ID, from, fields)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStatusTransition
		}
		order.Status = next
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status advanced",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	s.publish(ctx, order, from)

	resp := toResponse(order)
	return &resp, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	order, err := s.repo.FindByID(ctx, db, orderID.Int64())
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

// publish runs after the transaction committed; a broker failure does not undo
// the transition.
func (s *Service) publish(ctx context.Context, order *domain.Order, from domain.Status) {
	event := notify.StatusChanged{
		OrderID:    snowflake.ID(order.ID).String(),
		From:       string(from),
		To:         string(order.Status),
		OccurredAt: order.UpdatedAt,
	}
	if order.RestaurantID != nil {
		event.RestaurantID = snowflake.ID(*order.RestaurantID).String()
	}
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		s.log.Warn("status event not published", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// parseItems merges repeated products into one line.
func parseItems(reqs []domain.ItemRequest) ([]domain.OrderItem, error) {
	if len(reqs) == 0 {
		return nil, domain.ErrInvalidOrder
	}

	items := make([]domain.OrderItem, 0, len(reqs))
	index := make(map[int64]int, len(reqs))
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrProductNotFound, req.ProductID)
		}
		if i, ok := index[productID.Int64()]; ok {
			items[i].Quantity += req.Quantity
			continue
		}
		index[productID.Int64()] = len(items)
		items = append(items, domain.OrderItem{
			ProductID: productID.Int64(),
			Quantity:  req.Quantity,
		})
	}
	return items, nil
}

func toResponse(o *domain.Order) domain.Response {
	resp := domain.Response{
		ID:            snowflake.ID(o.ID).String(),
		Firstname:     o.Firstname,
		Lastname:      o.Lastname,
		Phone:         o.Phone,
		Address:       o.Address,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Comment:       o.Comment,
		Items:         make([]domain.ItemResponse, 0, len(o.Items)),
		Total:         o.Total(),
		RegisteredAt:  o.RegisteredAt,
		CalledAt:      o.CalledAt,
		DeliveredAt:   o.DeliveredAt,
	}
	if o.RestaurantID != nil {
		resp.RestaurantID = snowflake.ID(*o.RestaurantID).String()
	}
	for _, item := range o.Items {
		line := domain.ItemResponse{
			ProductID: snowflake.ID(item.ProductID).String(),
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		if item.Product != nil {
			line.Name = item.Product.Name
		}
		resp.Items = append(resp.Items, line)
	}
	return resp
}
