package repository

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dispatch/internal/config"
	"github.com/smallbiznis/dispatch/internal/geocode/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Config    config.Config
	Log       *zap.Logger
}

// Provide returns the place store, fronted by Redis when REDIS_ADDR is set.
func Provide(p Params) domain.Store {
	store := NewPlaceStore(p.DB)
	if !p.Config.Redis.Enabled() {
		return store
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Config.Redis.Addr,
		Password: p.Config.Redis.Password,
		DB:       p.Config.Redis.DB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	p.Log.Info("geocode place cache backed by redis", zap.String("addr", p.Config.Redis.Addr))
	return NewRedisStore(client, store, p.Log)
}
