package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/repository/repotest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPendingOrder(t *testing.T, repo *OrderRepository, orderID, date string, qty int) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderID:       orderID,
		Customer:      models.CustomerSnapshot{Name: "Bruno", Email: "bruno@example.com"},
		VisitDate:     date,
		PaymentStatus: models.PaymentPending,
		Items: []models.OrderItem{
			{TicketTypeID: "adult", Name: "Adult", Quantity: qty, UnitPrice: 8990},
		},
		TotalAmount: models.Money(8990 * qty),
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func setupOrders(t *testing.T) (*gorm.DB, *OrderRepository, *AvailabilityRepository) {
	db := repotest.NewDB(t)
	return db, NewOrderRepository(db), NewAvailabilityRepository(db)
}

func TestOrderRepository_ApproveReservesTickets(t *testing.T) {
	ctx := context.Background()
	_, orders, ledger := setupOrders(t)
	seedDate(t, ledger, "2025-06-01", 10, 8)
	newPendingOrder(t, orders, "ORDER-AAAA0001", "2025-06-01", 2)

	approved, err := orders.Approve(ctx, "ORDER-AAAA0001", "TKT-000000000001", "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentApproved, approved.PaymentStatus)
	require.NotNil(t, approved.TicketCode)
	assert.Equal(t, "TKT-000000000001", *approved.TicketCode)
	require.NotNil(t, approved.PaymentID)
	assert.Equal(t, "pay-1", *approved.PaymentID)

	a, err := ledger.Get(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 10, a.TicketsSold)

	_, err = orders.Approve(ctx, "ORDER-AAAA0001", "TKT-000000000002", "pay-1")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	a, err = ledger.Get(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 10, a.TicketsSold)
}

func TestOrderRepository_ApproveRollsBackWhenLedgerRefuses(t *testing.T) {
	ctx := context.Background()
	_, orders, ledger := setupOrders(t)
	seedDate(t, ledger, "2025-06-01", 10, 8)
	newPendingOrder(t, orders, "ORDER-AAAA0002", "2025-06-01", 3)

	_, err := orders.Approve(ctx, "ORDER-AAAA0002", "TKT-000000000003", "")
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	order, err := orders.GetByOrderID(ctx, "ORDER-AAAA0002")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Nil(t, order.TicketCode)

	a, err := ledger.Get(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 8, a.TicketsSold)
}

func TestOrderRepository_ReverseReleasesTickets(t *testing.T) {
	ctx := context.Background()
	_, orders, ledger := setupOrders(t)
	seedDate(t, ledger, "2025-06-10", 10, 0)
	newPendingOrder(t, orders, "ORDER-AAAA0003", "2025-06-10", 4)
	_, err := orders.Approve(ctx, "ORDER-AAAA0003", "TKT-000000000004", "")
	require.NoError(t, err)

	refunded, err := orders.Reverse(ctx, "ORDER-AAAA0003", models.PaymentRefunded, "customer request")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, refunded.PaymentStatus)
	assert.Nil(t, refunded.TicketCode)

	a, err := ledger.Get(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, 0, a.TicketsSold)

	_, err = orders.Reverse(ctx, "ORDER-AAAA0003", models.PaymentCancelled, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestOrderRepository_ReverseRefusesValidatedTicket(t *testing.T) {
	ctx := context.Background()
	_, orders, ledger := setupOrders(t)
	seedDate(t, ledger, "2025-06-11", 10, 0)
	newPendingOrder(t, orders, "ORDER-AAAA0004", "2025-06-11", 1)
	_, err := orders.Approve(ctx, "ORDER-AAAA0004", "TKT-000000000005", "")
	require.NoError(t, err)

	ok, err := orders.Redeem(ctx, "TKT-000000000005", uuid.New(), "Gate 1", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = orders.Reverse(ctx, "ORDER-AAAA0004", models.PaymentRefunded, "")
	assert.ErrorIs(t, err, models.ErrTicketAlreadyUsed)
}

func TestOrderRepository_ConcurrentRedeemAdmitsOnce(t *testing.T) {
	ctx := context.Background()
	_, orders, ledger := setupOrders(t)
	seedDate(t, ledger, "2025-06-12", 10, 0)
	newPendingOrder(t, orders, "ORDER-AAAA0005", "2025-06-12", 2)
	_, err := orders.Approve(ctx, "ORDER-AAAA0005", "TKT-000000000006", "")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins int64
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := orders.Redeem(ctx, "TKT-000000000006", uuid.New(), "Gate", time.Now().UTC())
			assert.NoError(t, err)
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins)
}

func TestOrderRepository_TransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	_, orders, _ := setupOrders(t)
	newPendingOrder(t, orders, "ORDER-AAAA0006", "2025-06-13", 1)

	require.NoError(t, orders.Transition(ctx, "ORDER-AAAA0006", models.PaymentPending, models.PaymentRejected, nil))
	assert.ErrorIs(t, orders.Transition(ctx, "ORDER-AAAA0006", models.PaymentPending, models.PaymentRejected, nil), models.ErrInvalidTransition)
	assert.ErrorIs(t, orders.Transition(ctx, "ORDER-AAAA0006", models.PaymentRejected, models.PaymentApproved, nil), models.ErrInvalidTransition)
}

func TestOrderRepository_ListAndStats(t *testing.T) {
	ctx := context.Background()
	_, orders, ledger := setupOrders(t)
	seedDate(t, ledger, "2025-06-14", 10, 0)
	customer := uuid.New()
	o := newPendingOrder(t, orders, "ORDER-AAAA0007", "2025-06-14", 2)
	newPendingOrder(t, orders, "ORDER-AAAA0008", "2025-06-14", 1)
	require.NoError(t, orders.db.Model(o).Update("customer_id", customer).Error)
	_, err := orders.Approve(ctx, "ORDER-AAAA0007", "TKT-000000000007", "")
	require.NoError(t, err)

	pending, err := orders.List(ctx, OrderFilter{Status: models.PaymentPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ORDER-AAAA0008", pending[0].OrderID)

	mine, err := orders.ListByCustomer(ctx, customer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Items, 1)

	stats, err := orders.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.ByStatus[models.PaymentApproved])
	assert.Equal(t, models.Money(17980), stats.ApprovedRevenue)

	_, err = orders.GetByTicketCode(ctx, "TKT-NOPE")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func testConcurrentApprovals(t *testing.T, db *gorm.DB) {
	ctx := context.Background()
	orders, ledger := NewOrderRepository(db), NewAvailabilityRepository(db)
	seedDate(t, ledger, "2025-08-01", 10, 0)
	for i := 0; i < 12; i++ {
		newPendingOrder(t, orders, fmt.Sprintf("ORDER-C%07d", i), "2025-08-01", 2)
	}

	var (
		wg       sync.WaitGroup
		approved int64
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orders.Approve(ctx, fmt.Sprintf("ORDER-C%07d", i), fmt.Sprintf("TKT-C%011d", i), "")
			if err == nil {
				atomic.AddInt64(&approved, 1)
				return
			}
			assert.ErrorIs(t, err, models.ErrCapacityExceeded)
		}(i)
	}
	wg.Wait()

	a, err := ledger.Get(ctx, "2025-08-01")
	require.NoError(t, err)
	assert.Equal(t, int64(5), approved)
	assert.Equal(t, 10, a.TicketsSold)

	var pending int64
	require.NoError(t, db.Model(&models.Order{}).Where("payment_status = ?", models.PaymentPending).Count(&pending).Error)
	assert.Equal(t, int64(7), pending, "refused approvals leave the order untouched")
}

func TestOrderRepository_ConcurrentApprovals(t *testing.T) {
	testConcurrentApprovals(t, repotest.NewDB(t))
}

func TestOrderRepository_ConcurrentApprovalsPostgres(t *testing.T) {
	testConcurrentApprovals(t, repotest.NewPostgresDB(t))
}
