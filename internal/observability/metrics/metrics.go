package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/dispatch/internal/config"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	"go.uber.org/fx"
)

const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

const (
	ProviderOutcomeSuccess      = "success"
	ProviderOutcomeNoCandidates = "no_candidates"
	ProviderOutcomeClientError  = "client_error"
	ProviderOutcomeServerError  = "server_error"
	ProviderOutcomeTimeout      = "timeout"
	ProviderOutcomeTransport    = "transport"
	ProviderOutcomeUnknown      = "unknown"
)

const (
	OrderOutcomeMatched            = "matched"
	OrderOutcomeNoCandidates       = "no_candidates"
	OrderOutcomeInvalid            = "invalid_order"
	OrderOutcomeProductNotFound    = "product_not_found"
	OrderOutcomeGeocodeUnavailable = "geocode_unavailable"
	OrderOutcomeError              = "error"
)

// Config carries the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

var Module = fx.Module("metrics",
	fx.Provide(Provide),
)

func Provide(cfg config.Config) *Metrics {
	return WithConfig(Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}

// Metrics holds the geocoding and matching instruments.
type Metrics struct {
	geocodeLookups   *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerRetries  prometheus.Counter
	providerDuration prometheus.Histogram
	storeErrors      *prometheus.CounterVec
	passDuration     prometheus.Histogram
	passOrders       *prometheus.CounterVec
	candidates       prometheus.Histogram
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	singleton   *Metrics
)

// WithConfig returns the process-wide metrics registered on the default registerer.
func WithConfig(cfg Config) *Metrics {
	metricsOnce.Do(func() {
		singleton = New(prometheus.DefaultRegisterer, cfg)
	})
	return singleton
}

// New registers a fresh set of instruments on registerer.
func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "dispatch"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Metrics{
		geocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_geocode_lookups_total",
			Help:        "Geocode cache lookups by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_geocode_provider_calls_total",
			Help:        "Geocoding provider attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		providerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatch_geocode_provider_retries_total",
			Help:        "Provider attempts repeated after a transient failure.",
			ConstLabels: constLabels,
		}),
		providerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "dispatch_geocode_provider_duration_seconds",
			Help:        "Latency of a single geocoding provider attempt.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_geocode_store_errors_total",
			Help:        "Place store failures by operation.",
			ConstLabels: constLabels,
		}, []string{"op"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "dispatch_matching_pass_duration_seconds",
			Help:        "Duration of a matching pass over a batch of orders.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}),
		passOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_matching_orders_total",
			Help:        "Orders processed by matching passes by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "dispatch_matching_candidates",
			Help:        "Ranked restaurants per successfully matched order.",
			Buckets:     []float64{0, 1, 2, 3, 5, 10, 20, 50},
			ConstLabels: constLabels,
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dispatch_scheduler_job_runs_total",
			Help:        "Scheduler job runs by result.",
			ConstLabels: constLabels,
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "dispatch_scheduler_job_duration_seconds",
			Help:        "Duration of scheduler job runs.",
			Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	registerer.MustRegister(
		m.geocodeLookups,
		m.providerCalls,
		m.providerRetries,
		m.providerDuration,
		m.storeErrors,
		m.passDuration,
		m.passOrders,
		m.candidates,
		m.jobRuns,
		m.jobDuration,
	)
	return m
}

func (m *Metrics) AddGeocodeLookups(result string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.geocodeLookups.WithLabelValues(result).Add(float64(count))
}

// ObserveProviderCall records one provider attempt and its classified outcome.
func (m *Metrics) ObserveProviderCall(err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(ClassifyProviderError(err)).Inc()
	m.providerDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncProviderRetry() {
	if m == nil {
		return
	}
	m.providerRetries.Inc()
}

func (m *Metrics) IncStoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObservePass(duration time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncOrderOutcome(outcome string) {
	if m == nil {
		return
	}
	m.passOrders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCandidates(count int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(count))
}

const (
	JobResultSuccess = "success"
	JobResultError   = "error"
	JobResultTimeout = "timeout"
)

func (m *Metrics) ObserveJob(job, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// ClassifyProviderError maps a provider error to a low-cardinality outcome label.
func ClassifyProviderError(err error) string {
	if err == nil {
		return ProviderOutcomeSuccess
	}
	if errors.Is(err, geocodedomain.ErrNoCandidates) {
		return ProviderOutcomeNoCandidates
	}
	var statusErr *geocodedomain.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Temporary() {
			return ProviderOutcomeServerError
		}
		return ProviderOutcomeClientError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ProviderOutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ProviderOutcomeTimeout
		}
		return ProviderOutcomeTransport
	}
	return ProviderOutcomeUnknown
}
