package notify

import (
	"context"

	"github.com/smallbiznis/dispatch/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

func Provide(p Params) (Publisher, error) {
	log := p.Log.Named("notify")
	if !p.Config.AMQP.Enabled() {
		log.Info("amqp disabled, status events are dropped")
		return Noop{}, nil
	}

	pub, err := Dial(p.Config.AMQP.URL, p.Config.AMQP.Exchange, log)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}

var Module = fx.Module("notify",
	fx.Provide(Provide),
)
