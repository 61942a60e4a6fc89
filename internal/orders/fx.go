package orders

import (
	"github.com/omnikart/omnikart/internal/orders/reconciler"
	"go.uber.org/fx"
)

var Module = fx.Module("orders.reconciler",
	fx.Provide(reconciler.NewService),
)
