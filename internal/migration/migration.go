package migration

import (
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	paymentdomain "github.com/omnikart/omnikart/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate creates the payment ledger and the payment-facing slice of the
// six order tables.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&paymentdomain.PaymentRecord{},
		&ordersdomain.RetailOrder{},
		&ordersdomain.FoodOrder{},
		&ordersdomain.GroceryOrder{},
		&ordersdomain.Booking{},
		&ordersdomain.TaxiRide{},
		&ordersdomain.PorterBooking{},
	)
	if err != nil {
		return err
	}
	log.Info("schema migrated")
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(AutoMigrate),
)
