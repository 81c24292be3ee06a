package service

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/dispatch/internal/clock"
	"github.com/smallbiznis/dispatch/internal/config"
	"github.com/smallbiznis/dispatch/internal/geocode/domain"
	"github.com/smallbiznis/dispatch/internal/geocode/repository"
	"github.com/smallbiznis/dispatch/internal/observability/metrics"
	"github.com/smallbiznis/dispatch/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var centralSquare = domain.Coordinate{Lat: 55.76, Lon: 37.61}

type providerStub struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]domain.Coordinate
	errs    map[string][]error
	block   func(ctx context.Context, address string) error
}

func newProviderStub() *providerStub {
	return &providerStub{
		calls:   map[string]int{},
		results: map[string]domain.Coordinate{},
		errs:    map[string][]error{},
	}
}

func (p *providerStub) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	p.mu.Lock()
	p.calls[address]++
	var err error
	if queue := p.errs[address]; len(queue) > 0 {
		err = queue[0]
		p.errs[address] = queue[1:]
	}
	coord, ok := p.results[address]
	block := p.block
	p.mu.Unlock()

	if block != nil {
		if err := block(ctx, address); err != nil {
			return domain.Coordinate{}, err
		}
	}
	if err != nil {
		return domain.Coordinate{}, err
	}
	if !ok {
		return domain.Coordinate{}, domain.ErrNoCandidates
	}
	return coord, nil
}

func (p *providerStub) Calls(address string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[address]
}

func (p *providerStub) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

type storeStub struct {
	domain.Store
	getManyCalls atomic.Int32
	upsertErr    error
}

func (s *storeStub) GetManyByAddress(ctx context.Context, addresses []string) (map[string]domain.Coordinate, error) {
	s.getManyCalls.Add(1)
	return s.Store.GetManyByAddress(ctx, addresses)
}

func (s *storeStub) Upsert(ctx context.Context, address string, coord domain.Coordinate, at time.Time) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.Store.Upsert(ctx, address, coord, at)
}

type fixture struct {
	db       *gorm.DB
	cache    *Cache
	store    *storeStub
	provider *providerStub
	clock    *clock.FakeClock
}

func newFixture(t *testing.T, cfg config.GeocoderConfig) *fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Place{}))

	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	store := &storeStub{Store: repository.NewPlaceStore(conn)}
	provider := newProviderStub()
	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	m := metrics.New(prometheus.NewRegistry(), metrics.Config{Environment: "test"})

	return &fixture{
		db:       conn,
		cache:    NewCache(cfg, store, provider, fake, zap.NewNop(), m),
		store:    store,
		provider: provider,
		clock:    fake,
	}
}

func TestResolveCachesProviderResult(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{MaxRetries: 1})
	f.provider.results["Central Square 1"] = centralSquare
	ctx := context.Background()

	first, err := f.cache.Resolve(ctx, "Central Square 1")
	require.NoError(t, err)
	assert.Equal(t, centralSquare, first)
	assert.Equal(t, 1, f.provider.Calls("Central Square 1"))

	second, err := f.cache.Resolve(ctx, "Central Square 1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.provider.Calls("Central Square 1"))
}

func TestResolveDoesNotNormalizeAddresses(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{})
	f.provider.results["Central Square 1"] = centralSquare
	f.provider.results["central square 1"] = centralSquare
	ctx := context.Background()

	_, err := f.cache.Resolve(ctx, "Central Square 1")
	require.NoError(t, err)
	_, err = f.cache.Resolve(ctx, "central square 1")
	require.NoError(t, err)

	assert.Equal(t, 2, f.provider.TotalCalls())
}

func TestResolveEmptyCandidatesIsNotRetried(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{MaxRetries: 3})

	_, err := f.cache.Resolve(context.Background(), "Nowhere 0")
	assert.ErrorIs(t, err, domain.ErrGeocodeUnavailable)
	assert.ErrorIs(t, err, domain.ErrNoCandidates)
	assert.Equal(t, 1, f.provider.Calls("Nowhere 0"))

	cached, err := f.store.GetByAddress(context.Background(), "Nowhere 0")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestResolveRetriesTransientFailureOnce(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{MaxRetries: 1})
	f.provider.results["Central Square 1"] = centralSquare
	f.provider.errs["Central Square 1"] = []error{&domain.StatusError{StatusCode: 503}}

	coord, err := f.cache.Resolve(context.Background(), "Central Square 1")
	require.NoError(t, err)
	assert.Equal(t, centralSquare, coord)
	assert.Equal(t, 2, f.provider.Calls("Central Square 1"))
}

func TestResolveGivesUpAfterRetries(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{MaxRetries: 1})
	refused := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	f.provider.errs["Central Square 1"] = []error{refused, refused, refused}

	_, err := f.cache.Resolve(context.Background(), "Central Square 1")
	assert.ErrorIs(t, err, domain.ErrGeocodeUnavailable)
	assert.Equal(t, 2, f.provider.Calls("Central Square 1"))
}

func TestResolveClientErrorIsNotRetried(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{MaxRetries: 1})
	f.provider.errs["Central Square 1"] = []error{&domain.StatusError{StatusCode: 403}}

	_, err := f.cache.Resolve(context.Background(), "Central Square 1")
	assert.ErrorIs(t, err, domain.ErrGeocodeUnavailable)
	assert.Equal(t, 1, f.provider.Calls("Central Square 1"))
}

func TestResolveBoundsProviderCallsWithTimeout(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{MaxRetries: 1, Timeout: 20 * time.Millisecond})
	f.provider.block = func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := f.cache.Resolve(context.Background(), "Central Square 1")
	assert.ErrorIs(t, err, domain.ErrGeocodeUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, f.provider.Calls("Central Square 1"))
}

func TestResolveEmptyAddress(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{})

	_, err := f.cache.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrGeocodeUnavailable)
	assert.Equal(t, 0, f.provider.TotalCalls())
}

func TestResolveUpsertFailureIsStoreConflict(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{})
	f.provider.results["Central Square 1"] = centralSquare
	f.store.upsertErr = errors.New("disk full")

	_, err := f.cache.Resolve(context.Background(), "Central Square 1")
	assert.ErrorIs(t, err, domain.ErrStoreConflict)
}

func TestResolveStampsResolutionTime(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{})
	f.provider.results["Central Square 1"] = centralSquare
	f.clock.Advance(90 * time.Minute)

	_, err := f.cache.Resolve(context.Background(), "Central Square 1")
	require.NoError(t, err)

	var place domain.Place
	require.NoError(t, f.db.Where("address = ?", "Central Square 1").First(&place).Error)
	assert.Equal(t, centralSquare, place.Coordinate())
	assert.True(t, place.LastResolvedAt.Equal(f.clock.Now()), "got %s", place.LastResolvedAt)
}

func TestResolveBatchDedupesAndLooksUpOnce(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{ResolveConcurrency: 2})
	ctx := context.Background()
	require.NoError(t, f.store.Upsert(ctx, "Arbat 1", domain.Coordinate{Lat: 55.75, Lon: 37.59}, f.clock.Now()))
	f.provider.results["Tverskaya 7"] = domain.Coordinate{Lat: 55.76, Lon: 37.61}
	f.provider.results["Lenina 3"] = domain.Coordinate{Lat: 55.70, Lon: 37.50}

	got := f.cache.ResolveBatch(ctx, []string{"Arbat 1", "Tverskaya 7", "Arbat 1", "Lenina 3", "Tverskaya 7"})

	require.Len(t, got, 3)
	for address, res := range got {
		assert.NoError(t, res.Err, address)
	}
	assert.Equal(t, domain.Coordinate{Lat: 55.75, Lon: 37.59}, got["Arbat 1"].Coordinate)
	assert.Equal(t, int32(1), f.store.getManyCalls.Load())
	assert.Equal(t, 0, f.provider.Calls("Arbat 1"))
	assert.Equal(t, 1, f.provider.Calls("Tverskaya 7"))
	assert.Equal(t, 1, f.provider.Calls("Lenina 3"))

	again := f.cache.ResolveBatch(ctx, []string{"Tverskaya 7", "Lenina 3"})
	assert.NoError(t, again["Tverskaya 7"].Err)
	assert.Equal(t, 2, f.provider.TotalCalls())
}

func TestResolveBatchIsolatesFailures(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{})
	f.provider.results["Tverskaya 7"] = domain.Coordinate{Lat: 55.76, Lon: 37.61}

	got := f.cache.ResolveBatch(context.Background(), []string{"Tverskaya 7", "Nowhere 0", ""})

	assert.NoError(t, got["Tverskaya 7"].Err)
	assert.ErrorIs(t, got["Nowhere 0"].Err, domain.ErrGeocodeUnavailable)
	assert.ErrorIs(t, got[""].Err, domain.ErrGeocodeUnavailable)
}

func TestResolveBatchCancelledKeepsInFlightResults(t *testing.T) {
	f := newFixture(t, config.GeocoderConfig{ResolveConcurrency: 1})
	f.provider.results["Arbat 1"] = domain.Coordinate{Lat: 55.75, Lon: 37.59}
	f.provider.results["Tverskaya 7"] = domain.Coordinate{Lat: 55.76, Lon: 37.61}

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.provider.block = func(ctx context.Context, _ string) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan map[string]domain.Resolution, 1)
	go func() {
		done <- f.cache.ResolveBatch(ctx, []string{"Arbat 1", "Tverskaya 7"})
	}()

	<-started
	cancel()
	close(release)
	got := <-done

	var resolved, cancelled string
	for address, res := range got {
		if res.Err == nil {
			resolved = address
		} else {
			assert.ErrorIs(t, res.Err, context.Canceled)
			cancelled = address
		}
	}
	require.NotEmpty(t, resolved)
	require.NotEmpty(t, cancelled)
	assert.Equal(t, 1, f.provider.TotalCalls())

	cached, err := f.store.GetByAddress(context.Background(), resolved)
	require.NoError(t, err)
	assert.NotNil(t, cached)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(domain.ErrNoCandidates))
	assert.False(t, IsTransient(&domain.StatusError{StatusCode: 404}))
	assert.False(t, IsTransient(errors.New("decode geocoder response")))
	assert.True(t, IsTransient(&domain.StatusError{StatusCode: 500}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: errors.New("refused")}))
}
