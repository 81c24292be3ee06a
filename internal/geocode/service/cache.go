package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/dispatch/internal/clock"
	"github.com/smallbiznis/dispatch/internal/config"
	"github.com/smallbiznis/dispatch/internal/geocode/domain"
	"github.com/smallbiznis/dispatch/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 4
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	Store    domain.Store
	Provider domain.Provider
	Metrics  *metrics.Metrics `optional:"true"`
}

// Cache resolves addresses through the place store first and the provider
// on a miss. Provider calls are detached from caller cancellation so a
// started lookup always lands in the store.
type Cache struct {
	store       domain.Store
	provider    domain.Provider
	clock       clock.Clock
	log         *zap.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	timeout     time.Duration
	maxRetries  int
	concurrency int
}

func New(p Params) domain.Service {
	return NewCache(p.Config.Geocoder, p.Store, p.Provider, p.Clock, p.Log, p.Metrics)
}

func NewCache(
	cfg config.GeocoderConfig,
	store domain.Store,
	provider domain.Provider,
	clk clock.Clock,
	log *zap.Logger,
	m *metrics.Metrics,
) *Cache {
	if clk == nil {
		clk = clock.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	concurrency := cfg.ResolveConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Cache{
		store:       store,
		provider:    provider,
		clock:       clk,
		log:         log.Named("geocode.service"),
		metrics:     m,
		tracer:      otel.Tracer("dispatch/geocode"),
		timeout:     timeout,
		maxRetries:  retries,
		concurrency: concurrency,
	}
}

func (c *Cache) Resolve(ctx context.Context, address string) (domain.Coordinate, error) {
	ctx, span := c.tracer.Start(ctx, "geocode.Resolve")
	defer span.End()

	if strings.TrimSpace(address) == "" {
		return domain.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrGeocodeUnavailable, domain.ErrEmptyAddress)
	}

	cached, err := c.store.GetByAddress(ctx, address)
	if err != nil {
		c.metrics.IncStoreError("get")
		c.log.Warn("place lookup failed, fetching from provider", zap.String("address", address), zap.Error(err))
	}
	if cached != nil {
		c.metrics.AddGeocodeLookups(metrics.LookupHit, 1)
		span.SetAttributes(attribute.Bool("geocode.cache_hit", true))
		return *cached, nil
	}
	c.metrics.AddGeocodeLookups(metrics.LookupMiss, 1)
	span.SetAttributes(attribute.Bool("geocode.cache_hit", false))

	coord, err := c.fetch(ctx, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return domain.Coordinate{}, err
	}
	return coord, nil
}

func (c *Cache) ResolveBatch(ctx context.Context, addresses []string) map[string]domain.Resolution {
	ctx, span := c.tracer.Start(ctx, "geocode.ResolveBatch")
	defer span.End()

	out := make(map[string]domain.Resolution, len(addresses))
	distinct := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		if strings.TrimSpace(address) == "" {
			out[address] = domain.Resolution{
				Err: fmt.Errorf("%w: %w", domain.ErrGeocodeUnavailable, domain.ErrEmptyAddress),
			}
			continue
		}
		distinct = append(distinct, address)
	}

	cached, err := c.store.GetManyByAddress(ctx, distinct)
	if err != nil {
		c.metrics.IncStoreError("get_many")
		c.log.Warn("bulk place lookup failed, fetching every address", zap.Int("addresses", len(distinct)), zap.Error(err))
		cached = nil
	}

	misses := make([]string, 0, len(distinct))
	for _, address := range distinct {
		if coord, ok := cached[address]; ok {
			out[address] = domain.Resolution{Coordinate: coord}
			continue
		}
		misses = append(misses, address)
	}
	c.metrics.AddGeocodeLookups(metrics.LookupHit, len(distinct)-len(misses))
	c.metrics.AddGeocodeLookups(metrics.LookupMiss, len(misses))
	span.SetAttributes(
		attribute.Int("geocode.addresses", len(distinct)),
		attribute.Int("geocode.misses", len(misses)),
	)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for _, address := range misses {
		g.Go(func() error {
			// Lookups already in flight finish; new ones are not started.
			if err := ctx.Err(); err != nil {
				mu.Lock()
				out[address] = domain.Resolution{Err: err}
				mu.Unlock()
				return nil
			}
			coord, err := c.fetch(ctx, address)
			mu.Lock()
			out[address] = domain.Resolution{Coordinate: coord, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// fetch asks the provider and stores the result. Failures after retries
// surface as ErrGeocodeUnavailable; store failures as ErrStoreConflict.
func (c *Cache) fetch(ctx context.Context, address string) (domain.Coordinate, error) {
	detached := context.WithoutCancel(ctx)

	coord, err := c.geocode(detached, address)
	if err != nil {
		c.log.Warn("geocode failed", zap.String("address", address), zap.Error(err))
		return domain.Coordinate{}, fmt.Errorf("%w: %q: %w", domain.ErrGeocodeUnavailable, address, err)
	}

	if err := c.store.Upsert(detached, address, coord, c.clock.Now()); err != nil {
		c.metrics.IncStoreError("upsert")
		c.log.Error("place upsert failed", zap.String("address", address), zap.Error(err))
		if !errors.Is(err, domain.ErrStoreConflict) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreConflict, err)
		}
		return domain.Coordinate{}, err
	}
	return coord, nil
}

func (c *Cache) geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.IncProviderRetry()
			c.log.Info("retrying geocode",
				zap.String("address", address),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		coord, err := c.provider.Geocode(attemptCtx, address)
		cancel()
		c.metrics.ObserveProviderCall(err, time.Since(start))

		if err == nil {
			return coord, nil
		}
		lastErr = err
		if !IsTransient(err) {
			break
		}
	}
	return domain.Coordinate{}, lastErr
}

// IsTransient reports whether a provider error is worth retrying: timeouts,
// transport failures and 5xx responses. Empty results and 4xx are final.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, domain.ErrNoCandidates) {
		return false
	}
	var statusErr *domain.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
