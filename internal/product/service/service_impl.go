package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dispatch/internal/clock"
	"github.com/smallbiznis/dispatch/internal/product/domain"
	"github.com/smallbiznis/dispatch/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxPrice is the largest value a numeric(8,2) column holds.
var maxPrice = decimal.RequireFromString("999999.99")

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: c,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.FindAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.toResponses(items), nil
}

func (s *Service) ListAvailable(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.FindAvailable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.toResponses(items), nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if code == "" || !slug.IsSlug(code) {
		return nil, domain.ErrInvalidCode
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(ptrToString(req.Description))
	var descriptionPtr *string
	if description != "" {
		descriptionPtr = &description
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:            s.genID.Generate().Int64(),
		Code:          code,
		Name:          name,
		Price:         price,
		SpecialStatus: req.SpecialStatus,
		Description:   descriptionPtr,
		Active:        active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if categoryName := strings.TrimSpace(req.Category); categoryName != "" {
			category, err := s.ensureCategory(ctx, tx, categoryName, now)
			if err != nil {
				return err
			}
			p.CategoryID = &category.ID
			p.Category = category
		}
		return s.repo.Create(ctx, tx, p)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicate
		}
		return nil, err
	}

	s.log.Info("product created", zap.Int64("product_id", p.ID), zap.String("code", p.Code))
	resp := s.toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) ensureCategory(ctx context.Context, tx *gorm.DB, name string, now time.Time) (*domain.Category, error) {
	existing, err := s.repo.FindCategoryByName(ctx, tx, name)
	if err != nil || existing != nil {
		return existing, err
	}
	category := &domain.Category{
		ID:        s.genID.Generate().Int64(),
		Name:      name,
		CreatedAt: now,
	}
	if err := s.repo.CreateCategory(ctx, tx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, domain.ErrInvalidPrice
	}
	if price.IsNegative() || price.GreaterThan(maxPrice) {
		return decimal.Zero, domain.ErrInvalidPrice
	}
	return price.Round(2), nil
}

func (s *Service) toResponses(items []domain.Product) []domain.Response {
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(&items[i]))
	}
	return resp
}

func (s *Service) toResponse(p *domain.Product) domain.Response {
	resp := domain.Response{
		ID:            snowflake.ID(p.ID).String(),
		Code:          p.Code,
		Name:          p.Name,
		Price:         p.Price,
		SpecialStatus: p.SpecialStatus,
		Description:   p.Description,
		Active:        p.Active,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Category != nil {
		resp.Category = p.Category.Name
	}
	if len(p.Metadata) > 0 {
		resp.Metadata = map[string]any(p.Metadata)
	}
	return resp
}

func ptrToString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
