package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/farellandr/aquapark/internal/models"
)

const SandboxTokenHeader = "X-Sandbox-Token"

// SandboxProcessor stands in for a real provider in development and tests.
// Checkout links point back at this service and outcomes are delivered as
// JSON callbacks carrying a shared token.
type SandboxProcessor struct {
	baseURL string
	token   string

	// outcomes settled without a callback, held until FetchStatus reports them
	mu       sync.Mutex
	outcomes map[string]Outcome
}

func NewSandboxProcessor(baseURL, token string) *SandboxProcessor {
	return &SandboxProcessor{
		baseURL:  baseURL,
		token:    token,
		outcomes: make(map[string]Outcome),
	}
}

func (p *SandboxProcessor) Name() string { return "sandbox" }

func (p *SandboxProcessor) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("order_id", req.OrderID)
	q.Set("amount", req.Total.String())
	return &CheckoutSession{
		Reference:   "SBX-" + req.OrderID,
		RedirectURL: fmt.Sprintf("%s/v1/payments/sandbox/checkout?%s", p.baseURL, q.Encode()),
	}, nil
}

type sandboxCallback struct {
	OrderID   string        `json:"order_id"`
	PaymentID string        `json:"payment_id"`
	Status    string        `json:"status"`
	Amount    *models.Money `json:"amount"`
}

// VerifyToken reports whether token matches the shared sandbox secret.
func (p *SandboxProcessor) VerifyToken(token string) bool {
	if p.token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(p.token)) == 1
}

func (p *SandboxProcessor) ParseCallback(r *http.Request) (*Callback, error) {
	if !p.VerifyToken(r.Header.Get(SandboxTokenHeader)) {
		return nil, ErrInvalidSignature
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var payload sandboxCallback
	if err := json.Unmarshal(body, &payload); err != nil || payload.OrderID == "" {
		return nil, ErrMalformedPayload
	}
	outcome := Outcome(payload.Status)
	switch outcome {
	case OutcomeApproved, OutcomeRejected, OutcomePending, OutcomeCancelled, OutcomeRefunded:
	default:
		return nil, ErrMalformedPayload
	}

	return &Callback{
		OrderID:   payload.OrderID,
		PaymentID: payload.PaymentID,
		Outcome:   outcome,
		Amount:    payload.Amount,
		RawStatus: payload.Status,
	}, nil
}

// Settle records an outcome whose callback never arrived. FetchStatus reports
// it once and then forgets it.
func (p *SandboxProcessor) Settle(orderID string, outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes[orderID] = outcome
}

func (p *SandboxProcessor) FetchStatus(ctx context.Context, orderID string) (*Callback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	outcome, ok := p.outcomes[orderID]
	delete(p.outcomes, orderID)
	p.mu.Unlock()
	if !ok {
		outcome = OutcomePending
	}
	return &Callback{OrderID: orderID, PaymentID: "SBX-" + orderID, Outcome: outcome, RawStatus: string(outcome)}, nil
}
