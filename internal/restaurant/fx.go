package restaurant

import (
	"github.com/smallbiznis/dispatch/internal/restaurant/repository"
	"github.com/smallbiznis/dispatch/internal/restaurant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("restaurant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
