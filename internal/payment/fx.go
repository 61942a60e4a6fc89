package payment

import (
	"github.com/omnikart/omnikart/internal/cache"
	"github.com/omnikart/omnikart/internal/payment/repository"
	paymentservice "github.com/omnikart/omnikart/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.NewWebhookDedup),
	fx.Provide(paymentservice.NewService),
)
