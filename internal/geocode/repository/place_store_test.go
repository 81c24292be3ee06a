package repository

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dispatch/internal/geocode/domain"
	"github.com/smallbiznis/dispatch/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Place{}))
	return conn
}

func TestPlaceStoreMissReturnsNil(t *testing.T) {
	store := NewPlaceStore(newTestDB(t))

	coord, err := store.GetByAddress(context.Background(), "Central Square 1")
	require.NoError(t, err)
	assert.Nil(t, coord)
}

func TestPlaceStoreUpsertLastWriterWins(t *testing.T) {
	conn := newTestDB(t)
	store := NewPlaceStore(conn)
	ctx := context.Background()
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, "Central Square 1", domain.Coordinate{Lat: 55.76, Lon: 37.61}, first))
	require.NoError(t, store.Upsert(ctx, "Central Square 1", domain.Coordinate{Lat: 55.77, Lon: 37.62}, first.Add(time.Hour)))

	var places []domain.Place
	require.NoError(t, conn.Find(&places).Error)
	require.Len(t, places, 1)
	assert.Equal(t, 55.77, places[0].Lat)
	assert.Equal(t, 37.62, places[0].Lon)
	assert.True(t, places[0].LastResolvedAt.Equal(first.Add(time.Hour)))

	coord, err := store.GetByAddress(ctx, "Central Square 1")
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.Equal(t, domain.Coordinate{Lat: 55.77, Lon: 37.62}, *coord)
}

func TestPlaceStoreMatchesExactAddressOnly(t *testing.T) {
	store := NewPlaceStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "Central Square 1", domain.Coordinate{Lat: 55.76, Lon: 37.61}, time.Now()))

	coord, err := store.GetByAddress(ctx, "central square 1")
	require.NoError(t, err)
	assert.Nil(t, coord)
}

func TestPlaceStoreGetManyReturnsOnlyCached(t *testing.T) {
	store := NewPlaceStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "Arbat 1", domain.Coordinate{Lat: 55.75, Lon: 37.59}, time.Now()))
	require.NoError(t, store.Upsert(ctx, "Tverskaya 7", domain.Coordinate{Lat: 55.76, Lon: 37.61}, time.Now()))

	got, err := store.GetManyByAddress(ctx, []string{"Arbat 1", "Tverskaya 7", "Nowhere 0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Coordinate{
		"Arbat 1":     {Lat: 55.75, Lon: 37.59},
		"Tverskaya 7": {Lat: 55.76, Lon: 37.61},
	}, got)

	empty, err := store.GetManyByAddress(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPlaceStoreUpsertFailureIsStoreConflict(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, conn.Migrator().DropTable(&domain.Place{}))
	store := NewPlaceStore(conn)

	err := store.Upsert(context.Background(), "Arbat 1", domain.Coordinate{}, time.Now())
	assert.ErrorIs(t, err, domain.ErrStoreConflict)
}

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStoreDegradesToPersistentStore(t *testing.T) {
	inner := NewPlaceStore(newTestDB(t))
	store := NewRedisStore(unreachableRedis(t), inner, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "Arbat 1", domain.Coordinate{Lat: 55.75, Lon: 37.59}, time.Now()))

	coord, err := store.GetByAddress(ctx, "Arbat 1")
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.Equal(t, domain.Coordinate{Lat: 55.75, Lon: 37.59}, *coord)

	many, err := store.GetManyByAddress(ctx, []string{"Arbat 1", "Nowhere 0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Coordinate{"Arbat 1": {Lat: 55.75, Lon: 37.59}}, many)

	missing, err := store.GetByAddress(ctx, "Nowhere 0")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
