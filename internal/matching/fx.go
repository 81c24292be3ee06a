package matching

import (
	"github.com/smallbiznis/dispatch/internal/matching/service"
	"go.uber.org/fx"
)

var Module = fx.Module("matching.service",
	fx.Provide(service.New),
)
