package sweeper_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/omnikart/omnikart/internal/clock"
	"github.com/omnikart/omnikart/internal/config"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	paymentdomain "github.com/omnikart/omnikart/internal/payment/domain"
	paymentrepo "github.com/omnikart/omnikart/internal/payment/repository"
	"github.com/omnikart/omnikart/internal/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRunOnce(t *testing.T) {
	dsn := fmt.Sprintf("file:sweeper_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.PaymentRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := paymentrepo.Provide()
	ctx := context.Background()

	insert := func(gatewayOrderID string) *paymentdomain.PaymentRecord {
		rec := &paymentdomain.PaymentRecord{
			ID:             node.Generate(),
			GatewayOrderID: gatewayOrderID,
			LocalOrderID:   "A1",
			OrderKind:      ordersdomain.KindRetailOrder,
			Amount:         500,
			Currency:       "INR",
		}
		require.NoError(t, repo.Insert(ctx, db, rec))
		return rec
	}

	stale := insert("order_stale")
	insert("order_fresh")
	captured := insert("order_captured")
	_, _, err = repo.CaptureByOrderID(ctx, db, paymentdomain.CaptureParams{
		GatewayOrderID: captured.GatewayOrderID, GatewayPaymentID: "pay_1",
	})
	require.NoError(t, err)

	// Age one pending row past the threshold.
	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, db.Exec(`UPDATE payments SET created_at = ? WHERE id = ?`, old, stale.ID).Error)

	fake := clock.NewFakeClock(time.Now())
	s := sweeper.New(sweeper.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{Sweeper: config.SweeperConfig{PendingAfter: 30 * time.Minute}},
		Clock: fake,
	})

	count, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the aged pending row is stale")

	// Once everything ages past the threshold, the captured row still stays out.
	fake.Advance(3 * time.Hour)
	count, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
