package geocode

import (
	"github.com/smallbiznis/dispatch/internal/geocode/repository"
	"github.com/smallbiznis/dispatch/internal/geocode/service"
	"github.com/smallbiznis/dispatch/internal/geocode/yandex"
	"go.uber.org/fx"
)

var Module = fx.Module("geocode.service",
	fx.Provide(repository.Provide),
	fx.Provide(yandex.Provide),
	fx.Provide(service.New),
)
