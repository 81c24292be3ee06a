package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/dispatch/internal/config"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	"github.com/smallbiznis/dispatch/internal/matching/domain"
	"github.com/smallbiznis/dispatch/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/dispatch/internal/order/domain"
	"github.com/smallbiznis/dispatch/internal/ranking"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Orders      orderdomain.Service
	Restaurants restaurantdomain.Service
	Geocoder    geocodedomain.Service
	Config      *config.MatchingConfigHolder `optional:"true"`
	Metrics     *metrics.Metrics             `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	orders      orderdomain.Service
	restaurants restaurantdomain.Service
	geocoder    geocodedomain.Service
	config      *config.MatchingConfigHolder
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("matching.service"),
		orders:      p.Orders,
		restaurants: p.Restaurants,
		geocoder:    p.Geocoder,
		config:      p.Config,
		metrics:     p.Metrics,
		tracer:      otel.Tracer("dispatch/matching"),
	}
}

func (s *Service) MatchPending(ctx context.Context) ([]domain.Result, error) {
	orders, err := s.orders.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending orders: %w", err)
	}
	return s.MatchBatch(ctx, orders)
}

func (s *Service) MatchBatch(ctx context.Context, orders []orderdomain.Order) ([]domain.Result, error) {
	start := time.Now()
	passID := ulid.Make().String()
	cfg := s.config.Get()
	log := s.log.With(zap.String("pass_id", passID))

	ctx, span := s.tracer.Start(ctx, "matching.MatchBatch", trace.WithAttributes(
		attribute.String("matching.pass_id", passID),
		attribute.Int("matching.orders", len(orders)),
	))
	defer span.End()

	results := make([]domain.Result, len(orders))
	pending := make([]int, 0, len(orders))
	for i, order := range orders {
		results[i] = domain.Result{OrderID: order.ID, Total: order.Total()}
		if err := order.Validate(); err != nil {
			results[i].Err = err
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		if err := s.rank(ctx, log, cfg, orders, pending, results); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched, failed := s.record(results)
	s.metrics.ObservePass(time.Since(start))
	span.SetAttributes(
		attribute.Int("matching.matched", matched),
		attribute.Int("matching.failed", failed),
	)
	log.Info("matching pass finished",
		zap.Int("orders", len(orders)),
		zap.Int("matched", matched),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

func (s *Service) rank(
	ctx context.Context,
	log *zap.Logger,
	cfg config.MatchingConfig,
	orders []orderdomain.Order,
	pending []int,
	results []domain.Result,
) error {
	snapshots, err := s.restaurants.Snapshots(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("load availability: %w", err)
	}

	qualifying := make(map[int][]restaurantdomain.AvailabilitySnapshot, len(pending))
	addresses := make([]string, 0, len(pending)*2)
	for _, i := range pending {
		required := orders[i].RequiredProducts()
		addresses = append(addresses, orders[i].Address)
		for _, snap := range snapshots {
			if domain.Matches(required, snap) {
				qualifying[i] = append(qualifying[i], snap)
				addresses = append(addresses, snap.Address)
			}
		}
	}

	resolved := s.geocoder.ResolveBatch(ctx, addresses)
	if err := ctx.Err(); err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers)
	for _, i := range pending {
		g.Go(func() error {
			origin, ok := resolved[orders[i].Address]
			if !ok {
				origin.Err = geocodedomain.ErrGeocodeUnavailable
			}
			if origin.Err != nil {
				results[i].Err = origin.Err
				return nil
			}

			located := make([]ranking.Located, 0, len(qualifying[i]))
			for _, snap := range qualifying[i] {
				res, ok := resolved[snap.Address]
				if !ok || res.Err != nil {
					log.Debug("dropping restaurant with unresolved address",
						zap.Int64("order_id", orders[i].ID),
						zap.Int64("restaurant_id", snap.RestaurantID),
						zap.Error(res.Err),
					)
					continue
				}
				located = append(located, ranking.Located{
					RestaurantID: snap.RestaurantID,
					Name:         snap.Name,
					Address:      snap.Address,
					Coordinate:   res.Coordinate,
				})
			}
			results[i].Candidates = ranking.Limit(ranking.Rank(origin.Coordinate, located), cfg.MaxCandidates)
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) record(results []domain.Result) (matched, failed int) {
	for _, res := range results {
		switch {
		case res.Err == nil && len(res.Candidates) > 0:
			matched++
			s.metrics.IncOrderOutcome(metrics.OrderOutcomeMatched)
			s.metrics.ObserveCandidates(len(res.Candidates))
		case res.Err == nil:
			s.metrics.IncOrderOutcome(metrics.OrderOutcomeNoCandidates)
			s.metrics.ObserveCandidates(0)
		default:
			failed++
			s.metrics.IncOrderOutcome(outcomeOf(res.Err))
		}
	}
	return matched, failed
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidOrder):
		return metrics.OrderOutcomeInvalid
	case errors.Is(err, orderdomain.ErrProductNotFound):
		return metrics.OrderOutcomeProductNotFound
	case errors.Is(err, geocodedomain.ErrGeocodeUnavailable):
		return metrics.OrderOutcomeGeocodeUnavailable
	default:
		return metrics.OrderOutcomeError
	}
}
