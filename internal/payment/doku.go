package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
)

const (
	dokuCheckoutPath = "/checkout/v1/payment"
	dokuStatusPath   = "/orders/v1/status/"
)

type DokuConfig struct {
	BaseURL          string // https://api-sandbox.doku.com
	ClientID         string
	SecretKey        string
	NotificationPath string // path DOKU signs notifications for
	CallbackURL      string // where the customer lands after paying
	Currency         string
	Timeout          time.Duration
}

// DokuProcessor creates hosted checkout links and verifies signed notifications.
type DokuProcessor struct {
	cfg    DokuConfig
	client *http.Client
}

func NewDokuProcessor(cfg DokuConfig) *DokuProcessor {
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DokuProcessor{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *DokuProcessor) Name() string { return "doku" }

func (p *DokuProcessor) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	lineItems := make([]map[string]interface{}, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, map[string]interface{}{
			"id":       item.TicketTypeID,
			"name":     fmt.Sprintf("%s - %s", item.Name, req.VisitDate),
			"quantity": item.Quantity,
			"price":    item.UnitPrice.Float64(),
		})
	}

	paymentBody := map[string]interface{}{
		"order": map[string]interface{}{
			"amount":                req.Total.Float64(),
			"invoice_number":        req.OrderID,
			"currency":              p.cfg.Currency,
			"callback_url":          p.cfg.CallbackURL,
			"auto_redirect":         true,
			"disable_retry_payment": true,
			"line_items":            lineItems,
		},
		"payment": map[string]interface{}{
			"payment_due_date": 60,
		},
		"customer": map[string]interface{}{
			"name":  req.Customer.Name,
			"email": req.Customer.Email,
			"phone": req.Customer.Phone,
		},
	}

	jsonBody, err := json.Marshal(paymentBody)
	if err != nil {
		return nil, err
	}

	var responseBody struct {
		Response struct {
			Order struct {
				InvoiceNumber string `json:"invoice_number"`
				SessionID     string `json:"session_id"`
			} `json:"order"`
			Payment struct {
				URL string `json:"url"`
			} `json:"payment"`
		} `json:"response"`
	}
	if err := p.do(ctx, http.MethodPost, dokuCheckoutPath, jsonBody, &responseBody); err != nil {
		return nil, err
	}
	if responseBody.Response.Payment.URL == "" {
		return nil, fmt.Errorf("doku: checkout response without payment url")
	}

	reference := responseBody.Response.Order.SessionID
	if reference == "" {
		reference = req.OrderID
	}
	return &CheckoutSession{Reference: reference, RedirectURL: responseBody.Response.Payment.URL}, nil
}

type dokuNotification struct {
	Order struct {
		InvoiceNumber string  `json:"invoice_number"`
		Amount        float64 `json:"amount"`
	} `json:"order"`
	Transaction struct {
		Status            string `json:"status"`
		OriginalRequestID string `json:"original_request_id"`
	} `json:"transaction"`
}

func (n *dokuNotification) callback() (*Callback, error) {
	if n.Order.InvoiceNumber == "" {
		return nil, ErrMalformedPayload
	}
	cb := &Callback{
		OrderID:   n.Order.InvoiceNumber,
		PaymentID: n.Transaction.OriginalRequestID,
		Outcome:   dokuOutcome(n.Transaction.Status),
		RawStatus: n.Transaction.Status,
	}
	if n.Order.Amount > 0 {
		amount := models.NewMoneyFromFloat(n.Order.Amount)
		cb.Amount = &amount
	}
	return cb, nil
}

func (p *DokuProcessor) ParseCallback(r *http.Request) (*Callback, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	ok := helpers.VerifyDokuSignature(
		p.cfg.ClientID,
		p.cfg.SecretKey,
		p.cfg.NotificationPath,
		r.Header.Get("Request-Id"),
		r.Header.Get("Request-Timestamp"),
		string(body),
		r.Header.Get("Signature"),
	)
	if !ok {
		return nil, ErrInvalidSignature
	}

	var n dokuNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, ErrMalformedPayload
	}
	return n.callback()
}

func (p *DokuProcessor) FetchStatus(ctx context.Context, orderID string) (*Callback, error) {
	var n dokuNotification
	if err := p.do(ctx, http.MethodGet, dokuStatusPath+orderID, nil, &n); err != nil {
		return nil, err
	}
	if n.Order.InvoiceNumber == "" {
		n.Order.InvoiceNumber = orderID
	}
	return n.callback()
}

func (p *DokuProcessor) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	headers := helpers.NewDokuHeaderGenerator(p.cfg.ClientID, p.cfg.SecretKey, path).GetHeaders(string(body))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("doku %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("doku %s %s: status %d", method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("doku %s %s: decode response: %w", method, path, err)
	}
	return nil
}

func dokuOutcome(status string) Outcome {
	switch strings.ToUpper(status) {
	case "SUCCESS":
		return OutcomeApproved
	case "FAILED", "EXPIRED":
		return OutcomeRejected
	case "REFUNDED":
		return OutcomeRefunded
	default:
		return OutcomePending
	}
}
