package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/aquapark/internal/events"
	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TicketStore interface {
	GetByTicketCode(ctx context.Context, code string) (*models.Order, error)
	Redeem(ctx context.Context, ticketCode string, staffID uuid.UUID, staffName string, at time.Time) (bool, error)
}

type RedemptionOutcome string

const (
	OutcomeAdmitted    RedemptionOutcome = "admitted"
	OutcomeAlreadyUsed RedemptionOutcome = "already_used"
	OutcomeNotApproved RedemptionOutcome = "not_approved"
	OutcomeNotFound    RedemptionOutcome = "not_found"
)

// Gatekeeper identifies the staff member scanning tickets.
type Gatekeeper struct {
	ID   uuid.UUID
	Name string
}

type TicketInfo struct {
	OrderID         string               `json:"order_id"`
	TicketCode      string               `json:"ticket_code"`
	CustomerName    string               `json:"customer_name"`
	CustomerEmail   string               `json:"customer_email"`
	VisitDate       string               `json:"visit_date"`
	Items           []models.OrderItem   `json:"items"`
	Quantity        int                  `json:"quantity"`
	TotalAmount     models.Money         `json:"total_amount"`
	PaymentStatus   models.PaymentStatus `json:"payment_status"`
	Validated       bool                 `json:"validated"`
	ValidatedAt     *time.Time           `json:"validated_at,omitempty"`
	ValidatedBy     *uuid.UUID           `json:"validated_by,omitempty"`
	ValidatedByName *string              `json:"validated_by_name,omitempty"`
}

type RedemptionResult struct {
	Outcome RedemptionOutcome `json:"outcome"`
	Message string            `json:"message"`
	Ticket  *TicketInfo       `json:"ticket,omitempty"`
}

type RedemptionService struct {
	tickets   TicketStore
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewRedemptionService(tickets TicketStore, publisher events.Publisher, log *zap.Logger) *RedemptionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedemptionService{tickets: tickets, publisher: publisher, log: log, now: time.Now}
}

func (s *RedemptionService) Lookup(ctx context.Context, code string) (*TicketInfo, error) {
	code = helpers.NormalizeTicketCode(code)
	if code == "" {
		return nil, models.ErrOrderNotFound
	}
	order, err := s.tickets.GetByTicketCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return ticketInfo(order), nil
}

// Redeem admits a ticket at most once. Concurrent scans of the same code are
// settled by the conditional update; only one of them sees admitted.
func (s *RedemptionService) Redeem(ctx context.Context, code string, staff Gatekeeper) (*RedemptionResult, error) {
	code = helpers.NormalizeTicketCode(code)
	if code == "" {
		return &RedemptionResult{Outcome: OutcomeNotFound, Message: "Ticket not found."}, nil
	}
	log := s.log.With(zap.String("ticket_code", code), zap.String("staff_id", staff.ID.String()))

	won, err := s.tickets.Redeem(ctx, code, staff.ID, staff.Name, s.now().UTC())
	if err != nil {
		return nil, err
	}

	order, err := s.tickets.GetByTicketCode(ctx, code)
	if errors.Is(err, models.ErrOrderNotFound) {
		log.Info("redemption refused", zap.String("outcome", string(OutcomeNotFound)))
		return &RedemptionResult{Outcome: OutcomeNotFound, Message: "Ticket not found."}, nil
	}
	if err != nil {
		return nil, err
	}
	info := ticketInfo(order)

	if won {
		log.Info("ticket admitted", zap.String("order_id", order.OrderID), zap.Int("quantity", info.Quantity))
		publish(ctx, s.publisher, log, events.TicketRedeemed, order, "", staff.ID.String())
		return &RedemptionResult{Outcome: OutcomeAdmitted, Message: "Entry granted.", Ticket: info}, nil
	}

	switch {
	case order.Validated:
		msg := "Ticket has already been used."
		if order.ValidatedAt != nil {
			msg = fmt.Sprintf("Ticket was already used at %s.", order.ValidatedAt.UTC().Format(time.RFC3339))
		}
		log.Info("redemption refused", zap.String("outcome", string(OutcomeAlreadyUsed)), zap.String("order_id", order.OrderID))
		return &RedemptionResult{Outcome: OutcomeAlreadyUsed, Message: msg, Ticket: info}, nil
	case order.PaymentStatus != models.PaymentApproved:
		log.Info("redemption refused", zap.String("outcome", string(OutcomeNotApproved)), zap.String("order_id", order.OrderID))
		return &RedemptionResult{
			Outcome: OutcomeNotApproved,
			Message: fmt.Sprintf("Payment status is %s.", order.PaymentStatus),
			Ticket:  info,
		}, nil
	default:
		return nil, fmt.Errorf("ticket %s changed during redemption, retry", code)
	}
}

func ticketInfo(order *models.Order) *TicketInfo {
	info := &TicketInfo{
		OrderID:         order.OrderID,
		CustomerName:    order.Customer.Name,
		CustomerEmail:   order.Customer.Email,
		VisitDate:       order.VisitDate,
		Items:           order.Items,
		Quantity:        order.TotalQuantity(),
		TotalAmount:     order.TotalAmount,
		PaymentStatus:   order.PaymentStatus,
		Validated:       order.Validated,
		ValidatedAt:     order.ValidatedAt,
		ValidatedBy:     order.ValidatedBy,
		ValidatedByName: order.ValidatedByName,
	}
	if order.TicketCode != nil {
		info.TicketCode = *order.TicketCode
	}
	return info
}
