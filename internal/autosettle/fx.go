package autosettle

import (
	"github.com/smallbiznis/cargosettle/internal/events"
	"go.uber.org/fx"
)

var Module = fx.Module("autosettle",
	fx.Provide(LoadConfig),
	fx.Provide(NewHandler),
	fx.Invoke(func(d *events.Dispatcher, h *Handler) {
		d.Subscribe(h)
	}),
)
