package domain

import (
	"errors"
	"strings"
	"time"
)

// Kind discriminates which order aggregate a payment settles.
type Kind string

const (
	KindRetailOrder   Kind = "RetailOrder"
	KindFoodOrder     Kind = "FoodOrder"
	KindGroceryOrder  Kind = "GroceryOrder"
	KindBooking       Kind = "Booking"
	KindTaxiRide      Kind = "TaxiRide"
	KindPorterBooking Kind = "PorterBooking"
)

// Kinds lists every registered order kind.
func Kinds() []Kind {
	return []Kind{
		KindRetailOrder,
		KindFoodOrder,
		KindGroceryOrder,
		KindBooking,
		KindTaxiRide,
		KindPorterBooking,
	}
}

// ParseKind validates a client-supplied order model name.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.TrimSpace(raw))
	for _, known := range Kinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", ErrUnsupportedKind
}

// Payment status vocabulary shared by every aggregate.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

const StatusCancelled = "cancelled"

var (
	ErrUnsupportedKind = errors.New("unsupported_order_kind")
)

// RetailOrder carries the payment-relevant slice of a retail order.
// Line items, addresses and the rest belong to the retail module.
type RetailOrder struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	Status        string     `json:"status" gorm:"type:text;not null;default:pending"`
	PaymentStatus string     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	PaymentID     string     `json:"payment_id" gorm:"type:text"`
	CancelledAt   *time.Time `json:"cancelled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (RetailOrder) TableName() string { return "retail_orders" }

type FoodOrder struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	Status        string     `json:"status" gorm:"type:text;not null;default:pending"`
	PaymentStatus string     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	PaymentID     string     `json:"payment_id" gorm:"type:text"`
	CancelledAt   *time.Time `json:"cancelled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (FoodOrder) TableName() string { return "food_orders" }

type GroceryOrder struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	Status        string     `json:"status" gorm:"type:text;not null;default:pending"`
	PaymentStatus string     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	PaymentID     string     `json:"payment_id" gorm:"type:text"`
	CancelledAt   *time.Time `json:"cancelled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (GroceryOrder) TableName() string { return "grocery_orders" }

// Booking is a hotel booking. Its lifecycle column is booking_status,
// unlike the other aggregates.
type Booking struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	BookingStatus string     `json:"booking_status" gorm:"type:text;not null;default:pending"`
	PaymentStatus string     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	PaymentID     string     `json:"payment_id" gorm:"type:text"`
	CancelledAt   *time.Time `json:"cancelled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

type TaxiRide struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	Status        string     `json:"status" gorm:"type:text;not null;default:pending"`
	PaymentStatus string     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	PaymentID     string     `json:"payment_id" gorm:"type:text"`
	AcceptedAt    *time.Time `json:"accepted_at"`
	CancelledAt   *time.Time `json:"cancelled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (TaxiRide) TableName() string { return "taxi_rides" }

type PorterBooking struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	Status        string     `json:"status" gorm:"type:text;not null;default:pending"`
	PaymentStatus string     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	PaymentID     string     `json:"payment_id" gorm:"type:text"`
	AssignedAt    *time.Time `json:"assigned_at"`
	CancelledAt   *time.Time `json:"cancelled_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (PorterBooking) TableName() string { return "porter_bookings" }

// OrderSummary is the two-field view the payment flow reads back after a
// reconciliation write.
type OrderSummary struct {
	ID            string `json:"id"`
	Kind          Kind   `json:"kind"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}
