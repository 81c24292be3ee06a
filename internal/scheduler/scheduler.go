package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/dispatch/internal/clock"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	matchingdomain "github.com/smallbiznis/dispatch/internal/matching/domain"
	"github.com/smallbiznis/dispatch/internal/observability/metrics"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	RestaurantSvc restaurantdomain.Service
	GeocodeSvc    geocodedomain.Service
	MatchingSvc   matchingdomain.Service
	Metrics       *metrics.Metrics `optional:"true"`
	Config        Config           `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	restaurantSvc restaurantdomain.Service
	geocodeSvc    geocodedomain.Service
	matchingSvc   matchingdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RestaurantSvc == nil || p.GeocodeSvc == nil || p.MatchingSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler"),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		restaurantSvc: p.RestaurantSvc,
		geocodeSvc:    p.GeocodeSvc,
		matchingSvc:   p.MatchingSvc,
		metrics:       p.Metrics,
	}, nil
}

// runJob bounds fn by timeout. A deadline is a soft failure: it is recorded
// and logged but not returned.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)

	switch {
	case err == nil:
		s.metrics.ObserveJob(name, metrics.JobResultSuccess, duration)
		log.Debug("job finished", zap.Duration("duration", duration))
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.metrics.ObserveJob(name, metrics.JobResultTimeout, duration)
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	default:
		s.metrics.ObserveJob(name, metrics.JobResultError, duration)
		return fmt.Errorf("%s: %w", name, err)
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobWarmRestaurantPlaces, s.WarmRestaurantPlacesJob},
		{JobMatchPending, s.MatchPendingJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WarmRestaurantPlacesJob resolves every restaurant address so matching passes
// find them in the place cache.
func (s *Scheduler) WarmRestaurantPlacesJob(ctx context.Context) error {
	snapshots, err := s.restaurantSvc.Snapshots(ctx)
	if err != nil {
		return err
	}

	addresses := make([]string, 0, len(snapshots))
	for _, snap := range snapshots {
		addresses = append(addresses, snap.Address)
	}

	failed := 0
	for address, res := range s.geocodeSvc.ResolveBatch(ctx, addresses) {
		if res.Err != nil {
			failed++
			s.log.Debug("restaurant address unresolved", zap.String("address", address), zap.Error(res.Err))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.Info("restaurant places warmed",
		zap.Int("restaurants", len(snapshots)),
		zap.Int("unresolved", failed),
	)
	return nil
}

// MatchPendingJob runs a matching pass over accepted orders. Results are
// reported through metrics and logs only.
func (s *Scheduler) MatchPendingJob(ctx context.Context) error {
	results, err := s.matchingSvc.MatchPending(ctx)
	if err != nil {
		return err
	}

	unmatched := 0
	for _, res := range results {
		if res.Err != nil || len(res.Candidates) == 0 {
			unmatched++
		}
	}
	s.log.Info("pending orders matched",
		zap.Int("orders", len(results)),
		zap.Int("unmatched", unmatched),
	)
	return nil
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}
