package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dispatch/internal/clock"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	"github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("restaurant.service"),
		genID:       p.GenID,
		clock:       c,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	restaurant := &domain.Restaurant{
		ID:           s.genID.Generate().Int64(),
		Name:         name,
		Address:      strings.TrimSpace(req.Address),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	seen := productdomain.NewIDSet()
	for _, entry := range req.Menu {
		productID, err := snowflake.ParseString(strings.TrimSpace(entry.ProductID))
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		if seen.Has(productID.Int64()) {
			return nil, domain.ErrDuplicateMenu
		}
		seen.Add(productID.Int64())

		available := true
		if entry.Available != nil {
			available = *entry.Available
		}
		restaurant.MenuItems = append(restaurant.MenuItems, domain.MenuItem{
			ID:           s.genID.Generate().Int64(),
			RestaurantID: restaurant.ID,
			ProductID:    productID.Int64(),
			Availability: available,
			UpdatedAt:    now,
		})
	}

	if seen.Len() > 0 {
		products, err := s.productRepo.FindByIDs(ctx, s.db, seen.Slice())
		if err != nil {
			return nil, err
		}
		if len(products) != seen.Len() {
			return nil, domain.ErrUnknownProduct
		}
	}

	if err := s.repo.Create(ctx, s.db, restaurant); err != nil {
		return nil, err
	}

	s.log.Info("restaurant created",
		zap.Int64("restaurant_id", restaurant.ID),
		zap.Int("menu_items", len(restaurant.MenuItems)),
	)
	resp := toResponse(restaurant)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	restaurantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, restaurantID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.FindAllWithMenu(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) SetAvailability(ctx context.Context, req domain.SetAvailabilityRequest) (*domain.MenuItemResponse, error) {
	restaurantID, err := snowflake.ParseString(strings.TrimSpace(req.RestaurantID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	restaurant, err := s.repo.FindByID(ctx, s.db, restaurantID.Int64())
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, domain.ErrNotFound
	}
	product, err := s.productRepo.FindByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrUnknownProduct
	}

	item := &domain.MenuItem{
		ID:           s.genID.Generate().Int64(),
		RestaurantID: restaurant.ID,
		ProductID:    product.ID,
		Availability: req.Available,
		UpdatedAt:    s.clock.Now(),
	}
	if err := s.repo.UpsertMenuItem(ctx, s.db, item); err != nil {
		return nil, err
	}

	stored, err := s.repo.FindMenuItem(ctx, s.db, restaurant.ID, product.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.ErrNotFound
	}

	s.log.Info("menu availability updated",
		zap.Int64("restaurant_id", restaurant.ID),
		zap.Int64("product_id", product.ID),
		zap.Bool("availability", stored.Availability),
	)
	resp := toMenuItemResponse(*stored)
	return &resp, nil
}

func (s *Service) Snapshots(ctx context.Context) ([]domain.AvailabilitySnapshot, error) {
	items, err := s.repo.FindAllWithMenu(ctx, s.db)
	if err != nil {
		return nil, err
	}
	snapshots := make([]domain.AvailabilitySnapshot, 0, len(items))
	for _, item := range items {
		snapshots = append(snapshots, domain.NewSnapshot(item))
	}
	return snapshots, nil
}

func toResponse(r *domain.Restaurant) domain.Response {
	resp := domain.Response{
		ID:           snowflake.ID(r.ID).String(),
		Name:         r.Name,
		Address:      r.Address,
		ContactPhone: r.ContactPhone,
		Menu:         make([]domain.MenuItemResponse, 0, len(r.MenuItems)),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for _, item := range r.MenuItems {
		resp.Menu = append(resp.Menu, toMenuItemResponse(item))
	}
	return resp
}

func toMenuItemResponse(item domain.MenuItem) domain.MenuItemResponse {
	return domain.MenuItemResponse{
		ProductID:    snowflake.ID(item.ProductID).String(),
		Availability: item.Availability,
		UpdatedAt:    item.UpdatedAt,
	}
}
