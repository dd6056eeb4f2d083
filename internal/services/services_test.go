package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farellandr/aquapark/internal/cache"
	"github.com/farellandr/aquapark/internal/events"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/payment"
	"github.com/farellandr/aquapark/internal/repository"
	"github.com/farellandr/aquapark/internal/repository/repotest"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	ledgerRepo *repository.AvailabilityRepository
	orderRepo  *repository.OrderRepository
	processor  *payment.SandboxProcessor
	recorder   *events.Recorder

	availability *AvailabilityService
	orders       *OrderService
	redemption   *RedemptionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.NewDB(t)
	f := &fixture{
		db:         db,
		ledgerRepo: repository.NewAvailabilityRepository(db),
		orderRepo:  repository.NewOrderRepository(db),
		processor:  payment.NewSandboxProcessor("http://localhost:8080", "secret"),
		recorder:   &events.Recorder{},
	}
	f.availability = NewAvailabilityService(f.ledgerRepo, cache.NewAvailabilityCache(nil, "", 0), nil)
	f.availability.now = func() time.Time { return fixedNow }
	f.orders = NewOrderService(f.orderRepo, repository.NewTicketTypeRepository(db), f.availability, f.processor, f.recorder, nil)
	f.redemption = NewRedemptionService(f.orderRepo, f.recorder, nil)

	require.NoError(t, db.Create(&models.TicketType{TicketID: "adult", Name: "Adult", Price: 8990, IsActive: true}).Error)
	require.NoError(t, db.Create(&models.TicketType{TicketID: "child", Name: "Child", Price: 4990, IsActive: true}).Error)
	return f
}

func (f *fixture) seedDate(t *testing.T, date string, total, sold int) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.TicketAvailability{
		Date: date, TotalTickets: total, TicketsSold: sold, IsActive: true,
	}).Error)
}

func (f *fixture) sold(t *testing.T, date string) int {
	t.Helper()
	a, err := f.ledgerRepo.Get(context.Background(), date)
	require.NoError(t, err)
	return a.TicketsSold
}

func (f *fixture) placeOrder(t *testing.T, date string, adults int) string {
	t.Helper()
	res, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{
		Customer:  models.CustomerSnapshot{Name: "Ana", Email: "ana@example.com"},
		Items:     []OrderItemInput{{TicketID: "adult", Quantity: adults}},
		VisitDate: date,
	})
	require.NoError(t, err)
	return res.OrderID
}

func (f *fixture) approve(t *testing.T, orderID string) *models.Order {
	t.Helper()
	res, err := f.orders.HandlePaymentCallback(context.Background(), &payment.Callback{
		OrderID: orderID, PaymentID: "pay-" + orderID, Outcome: payment.OutcomeApproved,
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentApproved, res.Status)
	order, err := f.orders.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

type failingProcessor struct {
	*payment.SandboxProcessor
}

func (failingProcessor) CreateCheckout(context.Context, *payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	return nil, errors.New("provider unavailable")
}
