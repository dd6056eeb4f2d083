package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/farellandr/aquapark/internal/models"
)

type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomePending   Outcome = "pending"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRefunded  Outcome = "refunded"
)

var (
	ErrInvalidSignature = errors.New("payment callback signature mismatch")
	ErrMalformedPayload = errors.New("malformed payment callback")
	ErrIgnoredEvent     = errors.New("payment callback event ignored")
)

type CheckoutRequest struct {
	OrderID   string
	VisitDate string
	Customer  models.CustomerSnapshot
	Items     []models.OrderItem
	Total     models.Money
}

type CheckoutSession struct {
	Reference   string
	RedirectURL string
}

// Callback is a processor notification normalised to our order reference.
type Callback struct {
	OrderID   string
	PaymentID string
	Outcome   Outcome
	Amount    *models.Money
	RawStatus string
}

// Processor is an external payment provider. The core never settles a payment
// itself; it creates a checkout session and reacts to the provider's outcome.
type Processor interface {
	Name() string
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	ParseCallback(r *http.Request) (*Callback, error)
	FetchStatus(ctx context.Context, orderID string) (*Callback, error)
}
