package reconciler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	"github.com/omnikart/omnikart/internal/orders/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:reconciler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ordersdomain.RetailOrder{},
		&ordersdomain.FoodOrder{},
		&ordersdomain.GroceryOrder{},
		&ordersdomain.Booking{},
		&ordersdomain.TaxiRide{},
		&ordersdomain.PorterBooking{},
	))
	return db
}

func newReconciler(db *gorm.DB) ordersdomain.Reconciler {
	return reconciler.NewService(reconciler.Params{DB: db, Log: zap.NewNop()})
}

func seed(t *testing.T, db *gorm.DB, kind ordersdomain.Kind, id string) {
	t.Helper()
	var model any
	switch kind {
	case ordersdomain.KindRetailOrder:
		model = &ordersdomain.RetailOrder{ID: id, Status: "pending", PaymentStatus: "pending"}
	case ordersdomain.KindFoodOrder:
		model = &ordersdomain.FoodOrder{ID: id, Status: "pending", PaymentStatus: "pending"}
	case ordersdomain.KindGroceryOrder:
		model = &ordersdomain.GroceryOrder{ID: id, Status: "pending", PaymentStatus: "pending"}
	case ordersdomain.KindBooking:
		model = &ordersdomain.Booking{ID: id, BookingStatus: "pending", PaymentStatus: "pending"}
	case ordersdomain.KindTaxiRide:
		model = &ordersdomain.TaxiRide{ID: id, Status: "pending", PaymentStatus: "pending"}
	case ordersdomain.KindPorterBooking:
		model = &ordersdomain.PorterBooking{ID: id, Status: "pending", PaymentStatus: "pending"}
	}
	require.NoError(t, db.Create(model).Error)
}

func TestMarkPaidPerKind(t *testing.T) {
	cases := []struct {
		kind       ordersdomain.Kind
		wantStatus string
	}{
		{ordersdomain.KindRetailOrder, "completed"},
		{ordersdomain.KindFoodOrder, "confirmed"},
		{ordersdomain.KindGroceryOrder, "confirmed"},
		{ordersdomain.KindBooking, "confirmed"},
		{ordersdomain.KindTaxiRide, "accepted"},
		{ordersdomain.KindPorterBooking, "assigned"},
	}

	db := setupTestDB(t)
	svc := newReconciler(db)
	ctx := context.Background()

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			id := "ord-" + string(tc.kind)
			seed(t, db, tc.kind, id)

			summary, err := svc.MarkPaid(ctx, ordersdomain.PaymentRef{
				LocalOrderID:     id,
				Kind:             tc.kind,
				GatewayPaymentID: "pay_123",
			})
			require.NoError(t, err)
			require.NotNil(t, summary)
			assert.Equal(t, id, summary.ID)
			assert.Equal(t, tc.kind, summary.Kind)
			assert.Equal(t, tc.wantStatus, summary.Status)
			assert.Equal(t, ordersdomain.PaymentStatusPaid, summary.PaymentStatus)
		})
	}
}

func TestMarkPaidStampsAcceptanceOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := newReconciler(db)
	ctx := context.Background()

	seed(t, db, ordersdomain.KindTaxiRide, "ride-1")
	ref := ordersdomain.PaymentRef{LocalOrderID: "ride-1", Kind: ordersdomain.KindTaxiRide, GatewayPaymentID: "pay_1"}

	_, err := svc.MarkPaid(ctx, ref)
	require.NoError(t, err)

	var ride ordersdomain.TaxiRide
	require.NoError(t, db.Raw(`SELECT * FROM taxi_rides WHERE id = ?`, "ride-1").Scan(&ride).Error)
	require.NotNil(t, ride.AcceptedAt)
	first := *ride.AcceptedAt

	// Redelivery keeps the original acceptance time.
	_, err = svc.MarkPaid(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, db.Raw(`SELECT * FROM taxi_rides WHERE id = ?`, "ride-1").Scan(&ride).Error)
	require.NotNil(t, ride.AcceptedAt)
	assert.True(t, ride.AcceptedAt.Equal(first))
}

func TestMarkPaidRecordsPaymentID(t *testing.T) {
	db := setupTestDB(t)
	svc := newReconciler(db)

	seed(t, db, ordersdomain.KindPorterBooking, "pb-1")
	_, err := svc.MarkPaid(context.Background(), ordersdomain.PaymentRef{
		LocalOrderID:     "pb-1",
		Kind:             ordersdomain.KindPorterBooking,
		GatewayPaymentID: "pay_pb",
	})
	require.NoError(t, err)

	var booking ordersdomain.PorterBooking
	require.NoError(t, db.Raw(`SELECT * FROM porter_bookings WHERE id = ?`, "pb-1").Scan(&booking).Error)
	assert.Equal(t, "pay_pb", booking.PaymentID)
	require.NotNil(t, booking.AssignedAt)
}

func TestMarkFailed(t *testing.T) {
	db := setupTestDB(t)
	svc := newReconciler(db)
	ctx := context.Background()

	for _, kind := range ordersdomain.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			id := "fail-" + string(kind)
			seed(t, db, kind, id)

			summary, err := svc.MarkFailed(ctx, ordersdomain.PaymentRef{LocalOrderID: id, Kind: kind})
			require.NoError(t, err)
			require.NotNil(t, summary)
			assert.Equal(t, ordersdomain.StatusCancelled, summary.Status)
			assert.Equal(t, ordersdomain.PaymentStatusFailed, summary.PaymentStatus)
		})
	}
}

func TestMarkFailedStampsCancellationOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := newReconciler(db)
	ctx := context.Background()

	seed(t, db, ordersdomain.KindRetailOrder, "ro-1")
	ref := ordersdomain.PaymentRef{LocalOrderID: "ro-1", Kind: ordersdomain.KindRetailOrder}

	_, err := svc.MarkFailed(ctx, ref)
	require.NoError(t, err)

	var order ordersdomain.RetailOrder
	require.NoError(t, db.Raw(`SELECT * FROM retail_orders WHERE id = ?`, "ro-1").Scan(&order).Error)
	require.NotNil(t, order.CancelledAt)
	first := *order.CancelledAt

	_, err = svc.MarkFailed(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, db.Raw(`SELECT * FROM retail_orders WHERE id = ?`, "ro-1").Scan(&order).Error)
	assert.True(t, order.CancelledAt.Equal(first))
}

func TestMissingOrderIsTolerated(t *testing.T) {
	db := setupTestDB(t)
	svc := newReconciler(db)
	ctx := context.Background()

	summary, err := svc.MarkPaid(ctx, ordersdomain.PaymentRef{
		LocalOrderID:     "does-not-exist",
		Kind:             ordersdomain.KindFoodOrder,
		GatewayPaymentID: "pay_x",
	})
	require.NoError(t, err)
	assert.Nil(t, summary)

	summary, err = svc.MarkFailed(ctx, ordersdomain.PaymentRef{
		LocalOrderID: "does-not-exist",
		Kind:         ordersdomain.KindFoodOrder,
	})
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestUnknownKindRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := newReconciler(db)

	_, err := svc.MarkPaid(context.Background(), ordersdomain.PaymentRef{
		LocalOrderID: "x",
		Kind:         ordersdomain.Kind("Subscription"),
	})
	assert.ErrorIs(t, err, ordersdomain.ErrUnsupportedKind)
}
