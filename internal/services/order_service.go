package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/aquapark/internal/events"
	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/payment"
	"github.com/farellandr/aquapark/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCodeAttempts = 3

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	SetCheckout(ctx context.Context, orderID, provider, reference, redirectURL string) error
	Transition(ctx context.Context, orderID string, from, to models.PaymentStatus, fields map[string]interface{}) error
	Approve(ctx context.Context, orderID, ticketCode, paymentID string) (*models.Order, error)
	Reverse(ctx context.Context, orderID string, to models.PaymentStatus, reason string) (*models.Order, error)
	Stats(ctx context.Context) (*repository.OrderStats, error)
}

type Catalog interface {
	ActiveByIDs(ctx context.Context, ids []string) (map[string]models.TicketType, error)
}

type OrderItemInput struct {
	TicketID  string        `json:"ticket_id" binding:"required"`
	Quantity  int           `json:"quantity"`
	UnitPrice *models.Money `json:"unit_price"`
}

type CreateOrderInput struct {
	Customer    models.CustomerSnapshot `json:"customer"`
	Items       []OrderItemInput        `json:"items"`
	VisitDate   string                  `json:"visit_date"`
	TotalAmount *models.Money           `json:"total_amount"`
	CustomerID  *uuid.UUID              `json:"-"`
}

type CheckoutResult struct {
	OrderID         string       `json:"order_id"`
	RedirectURL     string       `json:"redirect_url"`
	TotalAmount     models.Money `json:"total_amount"`
	PaymentProvider string       `json:"payment_provider"`
}

// CallbackResult reports what a processor notification did to the order.
// Applied is false for replays and for outcomes that change nothing.
type CallbackResult struct {
	OrderID     string               `json:"order_id"`
	Status      models.PaymentStatus `json:"payment_status"`
	Applied     bool                 `json:"applied"`
	NeedsReview bool                 `json:"needs_review"`
}

type OrderService struct {
	orders    OrderStore
	catalog   Catalog
	ledger    *AvailabilityService
	processor payment.Processor
	publisher events.Publisher
	log       *zap.Logger

	processorTimeout time.Duration
	newOrderID       func() string
	newTicketCode    func() string
}

func NewOrderService(orders OrderStore, catalog Catalog, ledger *AvailabilityService, processor payment.Processor, publisher events.Publisher, log *zap.Logger) *OrderService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		orders:           orders,
		catalog:          catalog,
		ledger:           ledger,
		processor:        processor,
		publisher:        publisher,
		log:              log,
		processorTimeout: 15 * time.Second,
		newOrderID:       helpers.NewOrderID,
		newTicketCode:    helpers.NewTicketCode,
	}
}

func (s *OrderService) SetProcessorTimeout(d time.Duration) {
	if d > 0 {
		s.processorTimeout = d
	}
}

// CreateOrder prices the cart from the catalog, stores a pending order and
// opens a checkout session with the processor. No capacity is taken here.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutResult, error) {
	customer := models.CustomerSnapshot{
		Name:     strings.TrimSpace(in.Customer.Name),
		Email:    strings.TrimSpace(in.Customer.Email),
		Phone:    strings.TrimSpace(in.Customer.Phone),
		Document: strings.TrimSpace(in.Customer.Document),
	}
	if customer.Name == "" || customer.Email == "" || !strings.Contains(customer.Email, "@") {
		return nil, models.ErrInvalidCustomer
	}
	visitDate, err := models.ParseDate(in.VisitDate)
	if err != nil {
		return nil, err
	}

	items, err := s.priceItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	var total models.Money
	quantity := 0
	for _, item := range items {
		total += item.Subtotal()
		quantity += item.Quantity
	}
	if in.TotalAmount != nil && *in.TotalAmount != total {
		return nil, fmt.Errorf("%w: client total %s, expected %s", models.ErrAmountMismatch, in.TotalAmount, total)
	}

	check, err := s.ledger.CheckAvailability(ctx, visitDate, quantity)
	if err != nil {
		return nil, err
	}
	if !check.Available {
		return nil, fmt.Errorf("%w: %s", models.ErrDateUnavailable, check.Message)
	}

	order, err := s.persistOrder(ctx, &models.Order{
		CustomerID:      in.CustomerID,
		Customer:        customer,
		Items:           items,
		VisitDate:       visitDate,
		TotalAmount:     total,
		PaymentStatus:   models.PaymentPending,
		PaymentProvider: s.processor.Name(),
	})
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("order_id", order.OrderID))

	checkoutCtx, cancel := context.WithTimeout(ctx, s.processorTimeout)
	defer cancel()
	session, err := s.processor.CreateCheckout(checkoutCtx, &payment.CheckoutRequest{
		OrderID:   order.OrderID,
		VisitDate: order.VisitDate,
		Customer:  order.Customer,
		Items:     order.Items,
		Total:     order.TotalAmount,
	})
	if err != nil {
		log.Error("checkout session failed", zap.String("provider", s.processor.Name()), zap.Error(err))
		fields := map[string]interface{}{"review_reason": "checkout session could not be created"}
		if terr := s.orders.Transition(ctx, order.OrderID, models.PaymentPending, models.PaymentCancelled, fields); terr != nil {
			log.Error("failed to cancel order after checkout failure", zap.Error(terr))
		}
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentProvider, err)
	}

	if err := s.orders.SetCheckout(ctx, order.OrderID, s.processor.Name(), session.Reference, session.RedirectURL); err != nil {
		return nil, err
	}
	log.Info("order created",
		zap.String("visit_date", order.VisitDate),
		zap.Int("quantity", quantity),
		zap.String("total_amount", total.String()))

	return &CheckoutResult{
		OrderID:         order.OrderID,
		RedirectURL:     session.RedirectURL,
		TotalAmount:     total,
		PaymentProvider: s.processor.Name(),
	}, nil
}

func (s *OrderService) priceItems(ctx context.Context, inputs []OrderItemInput) ([]models.OrderItem, error) {
	if len(inputs) == 0 {
		return nil, models.ErrEmptyOrder
	}

	merged := make(map[string]*OrderItemInput, len(inputs))
	var ids []string
	for i := range inputs {
		in := inputs[i]
		in.TicketID = strings.TrimSpace(in.TicketID)
		if in.TicketID == "" {
			return nil, models.ErrUnknownTicketType
		}
		if in.Quantity < 1 {
			return nil, models.ErrInvalidQuantity
		}
		if prev, ok := merged[in.TicketID]; ok {
			prev.Quantity += in.Quantity
			if prev.UnitPrice != nil && in.UnitPrice != nil && *prev.UnitPrice != *in.UnitPrice {
				return nil, fmt.Errorf("%w: conflicting prices for %s", models.ErrAmountMismatch, in.TicketID)
			}
			if prev.UnitPrice == nil {
				prev.UnitPrice = in.UnitPrice
			}
			continue
		}
		merged[in.TicketID] = &in
		ids = append(ids, in.TicketID)
	}

	catalog, err := s.catalog.ActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		in := merged[id]
		ticket, ok := catalog[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownTicketType, id)
		}
		if in.UnitPrice != nil && *in.UnitPrice != ticket.Price {
			return nil, fmt.Errorf("%w: %s costs %s", models.ErrAmountMismatch, id, ticket.Price)
		}
		items = append(items, models.OrderItem{
			TicketTypeID: ticket.TicketID,
			Name:         ticket.Name,
			Quantity:     in.Quantity,
			UnitPrice:    ticket.Price,
		})
	}
	return items, nil
}

func (s *OrderService) persistOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		order.OrderID = s.newOrderID()
		order.ID = uuid.Nil
		for i := range order.Items {
			order.Items[i].ID = uuid.Nil
		}
		if err = s.orders.Create(ctx, order); err == nil {
			return order, nil
		}
		if !isDuplicate(err) {
			return nil, err
		}
	}
	return nil, err
}

// HandlePaymentCallback applies a processor outcome. Only a pending order can
// be settled; anything else is acknowledged and left untouched.
func (s *OrderService) HandlePaymentCallback(ctx context.Context, cb *payment.Callback) (*CallbackResult, error) {
	order, err := s.orders.GetByOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	log := s.log.With(
		zap.String("order_id", order.OrderID),
		zap.String("outcome", string(cb.Outcome)),
		zap.String("payment_id", cb.PaymentID))

	switch cb.Outcome {
	case payment.OutcomeApproved:
		if order.PaymentStatus != models.PaymentPending {
			log.Info("ignoring replayed approval", zap.String("status", string(order.PaymentStatus)))
			return unchanged(order), nil
		}
		return s.approve(ctx, order, cb, log)

	case payment.OutcomeRejected, payment.OutcomeCancelled:
		to := models.PaymentRejected
		if cb.Outcome == payment.OutcomeCancelled {
			to = models.PaymentCancelled
		}
		if order.PaymentStatus != models.PaymentPending {
			if order.PaymentStatus == models.PaymentApproved {
				log.Warn("processor reported a failure for an approved order")
			}
			return unchanged(order), nil
		}
		err := s.orders.Transition(ctx, order.OrderID, models.PaymentPending, to, paymentIDField(cb.PaymentID))
		if errors.Is(err, models.ErrInvalidTransition) {
			return s.current(ctx, order.OrderID)
		}
		if err != nil {
			return nil, err
		}
		order.PaymentStatus = to
		log.Info("payment not completed", zap.String("status", string(to)))
		s.publish(ctx, eventTypeFor(to), order, "", cb.PaymentID)
		return &CallbackResult{OrderID: order.OrderID, Status: to, Applied: true}, nil

	case payment.OutcomeRefunded:
		if order.PaymentStatus != models.PaymentApproved {
			return unchanged(order), nil
		}
		reversed, err := s.reverse(ctx, order.OrderID, models.PaymentRefunded, "refunded by "+s.processor.Name(), "")
		if errors.Is(err, models.ErrInvalidTransition) {
			return s.current(ctx, order.OrderID)
		}
		if errors.Is(err, models.ErrTicketAlreadyUsed) {
			log.Error("processor refunded a ticket that was already used at the gate")
			return unchanged(order), nil
		}
		if err != nil {
			return nil, err
		}
		return &CallbackResult{OrderID: reversed.OrderID, Status: reversed.PaymentStatus, Applied: true}, nil

	default:
		return unchanged(order), nil
	}
}

func (s *OrderService) approve(ctx context.Context, order *models.Order, cb *payment.Callback, log *zap.Logger) (*CallbackResult, error) {
	if cb.Amount != nil && *cb.Amount != order.TotalAmount {
		reason := fmt.Sprintf("paid amount %s does not match order total %s", cb.Amount, order.TotalAmount)
		return s.flagForReview(ctx, order, cb.PaymentID, reason, log)
	}

	var (
		approved *models.Order
		err      error
	)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		approved, err = s.orders.Approve(ctx, order.OrderID, s.newTicketCode(), cb.PaymentID)
		if !errors.Is(err, models.ErrTicketCodeInUse) {
			break
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, models.ErrInvalidTransition):
		// a concurrent notification settled it first
		return s.current(ctx, order.OrderID)
	case errors.Is(err, models.ErrCapacityExceeded), errors.Is(err, models.ErrDateNotFound):
		reason := fmt.Sprintf("payment approved but %d tickets could not be reserved for %s: %v", order.TotalQuantity(), order.VisitDate, err)
		return s.flagForReview(ctx, order, cb.PaymentID, reason, log)
	default:
		return nil, err
	}

	s.ledger.Invalidate(ctx)
	log.Info("order approved",
		zap.String("visit_date", approved.VisitDate),
		zap.Int("quantity", approved.TotalQuantity()))
	s.publish(ctx, events.OrderApproved, approved, "", cb.PaymentID)
	return &CallbackResult{OrderID: approved.OrderID, Status: approved.PaymentStatus, Applied: true}, nil
}

// flagForReview records a payment the ledger could not honour. The customer
// was charged, so the order is parked as rejected for an operator to refund.
func (s *OrderService) flagForReview(ctx context.Context, order *models.Order, paymentID, reason string, log *zap.Logger) (*CallbackResult, error) {
	fields := paymentIDField(paymentID)
	fields["needs_review"] = true
	fields["review_reason"] = reason
	err := s.orders.Transition(ctx, order.OrderID, models.PaymentPending, models.PaymentRejected, fields)
	if errors.Is(err, models.ErrInvalidTransition) {
		return s.current(ctx, order.OrderID)
	}
	if err != nil {
		return nil, err
	}

	log.Error("payment requires reconciliation", zap.String("reason", reason))
	order.PaymentStatus = models.PaymentRejected
	order.NeedsReview = true
	s.publish(ctx, events.ReconciliationRequired, order, reason, paymentID)
	s.publish(ctx, events.OrderRejected, order, reason, paymentID)
	return &CallbackResult{OrderID: order.OrderID, Status: models.PaymentRejected, Applied: true, NeedsReview: true}, nil
}

// SyncPaymentStatus asks the processor for the latest outcome of a pending
// order. Used when the customer returns from checkout before the webhook.
func (s *OrderService) SyncPaymentStatus(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != models.PaymentPending {
		return order, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.processorTimeout)
	defer cancel()
	cb, err := s.processor.FetchStatus(fetchCtx, orderID)
	if err != nil {
		s.log.Warn("payment status lookup failed", zap.String("order_id", orderID), zap.Error(err))
		return order, nil
	}
	cb.OrderID = orderID
	if _, err := s.HandlePaymentCallback(ctx, cb); err != nil {
		return nil, err
	}
	return s.orders.GetByOrderID(ctx, orderID)
}

// CancelOrder is an operator action. Approved orders give their tickets back.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, actorID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.PaymentStatus {
	case models.PaymentPending:
		if err := s.orders.Transition(ctx, orderID, models.PaymentPending, models.PaymentCancelled, nil); err != nil {
			return nil, err
		}
		order.PaymentStatus = models.PaymentCancelled
		s.log.Info("order cancelled", zap.String("order_id", orderID), zap.String("actor_id", actorID.String()))
		s.publish(ctx, events.OrderCancelled, order, "", actorID.String())
		return s.orders.GetByOrderID(ctx, orderID)
	case models.PaymentApproved:
		return s.reverse(ctx, orderID, models.PaymentCancelled, "cancelled by staff", actorID.String())
	default:
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.PaymentStatus, models.PaymentCancelled)
	}
}

func (s *OrderService) RefundOrder(ctx context.Context, orderID string, actorID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != models.PaymentApproved {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.PaymentStatus, models.PaymentRefunded)
	}
	return s.reverse(ctx, orderID, models.PaymentRefunded, "refunded by staff", actorID.String())
}

func (s *OrderService) reverse(ctx context.Context, orderID string, to models.PaymentStatus, reason, actor string) (*models.Order, error) {
	reversed, err := s.orders.Reverse(ctx, orderID, to, reason)
	if err != nil {
		return nil, err
	}
	s.ledger.Invalidate(ctx)
	s.log.Info("approved order reversed",
		zap.String("order_id", orderID),
		zap.String("status", string(to)),
		zap.Int("released", reversed.TotalQuantity()),
		zap.String("actor_id", actor))
	s.publish(ctx, eventTypeFor(to), reversed, reason, actor)
	return reversed, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.orders.GetByOrderID(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, filter.Status)
	}
	return s.orders.List(ctx, filter)
}

func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *OrderService) Stats(ctx context.Context) (*repository.OrderStats, error) {
	return s.orders.Stats(ctx)
}

func (s *OrderService) current(ctx context.Context, orderID string) (*CallbackResult, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return unchanged(order), nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order, reason, actor string) {
	publish(ctx, s.publisher, s.log, eventType, order, reason, actor)
}

func publish(ctx context.Context, p events.Publisher, log *zap.Logger, eventType string, order *models.Order, reason, actor string) {
	event := events.OrderEvent{
		Type:          eventType,
		OrderID:       order.OrderID,
		VisitDate:     order.VisitDate,
		Quantity:      order.TotalQuantity(),
		TotalAmount:   order.TotalAmount.String(),
		PaymentStatus: string(order.PaymentStatus),
		CustomerEmail: order.Customer.Email,
		Reason:        reason,
		ActorID:       actor,
		OccurredAt:    time.Now().UTC(),
	}
	if order.TicketCode != nil {
		event.TicketCode = *order.TicketCode
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Warn("failed to publish order event",
			zap.String("event", eventType),
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func unchanged(order *models.Order) *CallbackResult {
	return &CallbackResult{OrderID: order.OrderID, Status: order.PaymentStatus, NeedsReview: order.NeedsReview}
}

func paymentIDField(paymentID string) map[string]interface{} {
	fields := map[string]interface{}{}
	if paymentID != "" {
		fields["payment_id"] = paymentID
	}
	return fields
}

func eventTypeFor(status models.PaymentStatus) string {
	switch status {
	case models.PaymentApproved:
		return events.OrderApproved
	case models.PaymentCancelled:
		return events.OrderCancelled
	case models.PaymentRefunded:
		return events.OrderRefunded
	default:
		return events.OrderRejected
	}
}
