package gateway

import (
	razorpay "github.com/razorpay/razorpay-go"

	"github.com/omnikart/omnikart/internal/config"
)

// razorpayAPI adapts the razorpay SDK to the remoteAPI surface.
type razorpayAPI struct {
	client *razorpay.Client
}

func newRazorpayAPI(cfg config.GatewayConfig) *razorpayAPI {
	return &razorpayAPI{client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret)}
}

func (a *razorpayAPI) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return a.client.Order.Create(data, nil)
}

func (a *razorpayAPI) CreateRefund(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error) {
	return a.client.Payment.Refund(paymentID, amount, data, nil)
}
