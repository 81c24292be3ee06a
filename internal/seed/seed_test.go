package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dispatch/internal/migration"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"github.com/smallbiznis/dispatch/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDemoCatalogIsIdempotent(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	created, err := EnsureDemoCatalog(context.Background(), conn, node)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureDemoCatalog(context.Background(), conn, node)
	require.NoError(t, err)
	assert.False(t, created)

	var products, categories, restaurants, menu int64
	require.NoError(t, conn.Model(&productdomain.Product{}).Count(&products).Error)
	require.NoError(t, conn.Model(&productdomain.Category{}).Count(&categories).Error)
	require.NoError(t, conn.Model(&restaurantdomain.Restaurant{}).Count(&restaurants).Error)
	require.NoError(t, conn.Model(&restaurantdomain.MenuItem{}).Count(&menu).Error)
	assert.Equal(t, int64(len(demoProducts)), products)
	assert.Equal(t, int64(3), categories)
	assert.Equal(t, int64(len(demoRestaurants)), restaurants)
	assert.Equal(t, int64(8), menu)
}

func TestEnsureDemoCatalogRequiresHandles(t *testing.T) {
	_, err := EnsureDemoCatalog(context.Background(), nil, nil)
	assert.Error(t, err)
}
