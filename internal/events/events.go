// Package events publishes order lifecycle notifications to RabbitMQ so that
// mailers, reporting and the reconciliation desk can follow along without
// reading the primary database.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	OrderApproved          = "order.approved"
	OrderRejected          = "order.rejected"
	OrderCancelled         = "order.cancelled"
	OrderRefunded          = "order.refunded"
	ReconciliationRequired = "order.reconciliation_required"
	TicketRedeemed         = "ticket.redeemed"
)

type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	VisitDate     string    `json:"visit_date"`
	Quantity      int       `json:"quantity"`
	TotalAmount   string    `json:"total_amount"`
	PaymentStatus string    `json:"payment_status"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	TicketCode    string    `json:"ticket_code,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []OrderEvent
}

func (r *Recorder) Publish(_ context.Context, event OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
