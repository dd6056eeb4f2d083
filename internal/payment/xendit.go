package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farellandr/aquapark/internal/models"
	"github.com/xendit/xendit-go/v6"
	"github.com/xendit/xendit-go/v6/invoice"
)

const XenditCallbackTokenHeader = "X-Callback-Token"

type XenditConfig struct {
	SecretKey          string
	CallbackToken      string
	SuccessRedirectURL string
	FailureRedirectURL string
	Currency           string
	Timeout            time.Duration
}

// invoiceAPI is the slice of the Xendit invoice API the processor needs.
type invoiceAPI interface {
	CreateInvoice(ctx context.Context, req invoice.CreateInvoiceRequest) (id, url string, err error)
	InvoiceByExternalID(ctx context.Context, externalID string) (status string, amount float64, id string, found bool, err error)
}

type xenditInvoiceAPI struct {
	client *xendit.APIClient
}

func (a *xenditInvoiceAPI) CreateInvoice(ctx context.Context, req invoice.CreateInvoiceRequest) (string, string, error) {
	resp, _, xerr := a.client.InvoiceApi.CreateInvoice(ctx).CreateInvoiceRequest(req).Execute()
	if xerr != nil {
		return "", "", fmt.Errorf("xendit create invoice: %s", xerr.Error())
	}
	return resp.GetId(), resp.GetInvoiceUrl(), nil
}

func (a *xenditInvoiceAPI) InvoiceByExternalID(ctx context.Context, externalID string) (string, float64, string, bool, error) {
	invoices, _, xerr := a.client.InvoiceApi.GetInvoices(ctx).ExternalId(externalID).Execute()
	if xerr != nil {
		return "", 0, "", false, fmt.Errorf("xendit get invoices: %s", xerr.Error())
	}
	if len(invoices) == 0 {
		return "", 0, "", false, nil
	}
	latest := invoices[0]
	return string(latest.GetStatus()), latest.GetAmount(), latest.GetId(), true, nil
}

// XenditProcessor issues hosted invoices and accepts Xendit invoice callbacks
// authenticated by the account's callback verification token.
type XenditProcessor struct {
	cfg XenditConfig
	api invoiceAPI
}

func NewXenditProcessor(cfg XenditConfig) *XenditProcessor {
	return newXenditProcessor(cfg, &xenditInvoiceAPI{client: xendit.NewClient(cfg.SecretKey)})
}

func newXenditProcessor(cfg XenditConfig, api invoiceAPI) *XenditProcessor {
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &XenditProcessor{cfg: cfg, api: api}
}

func (p *XenditProcessor) Name() string { return "xendit" }

func (p *XenditProcessor) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	names := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		names = append(names, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}

	invoiceReq := *invoice.NewCreateInvoiceRequest(req.OrderID, req.Total.Float64())
	invoiceReq.SetDescription(fmt.Sprintf("Visit %s: %s", req.VisitDate, strings.Join(names, ", ")))
	invoiceReq.SetPayerEmail(req.Customer.Email)
	invoiceReq.SetCurrency(p.cfg.Currency)
	if p.cfg.SuccessRedirectURL != "" {
		invoiceReq.SetSuccessRedirectUrl(p.cfg.SuccessRedirectURL)
	}
	if p.cfg.FailureRedirectURL != "" {
		invoiceReq.SetFailureRedirectUrl(p.cfg.FailureRedirectURL)
	}

	id, url, err := p.api.CreateInvoice(ctx, invoiceReq)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{Reference: id, RedirectURL: url}, nil
}

type xenditCallback struct {
	ID         string  `json:"id"`
	ExternalID string  `json:"external_id"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	PaidAmount float64 `json:"paid_amount"`
}

func (p *XenditProcessor) ParseCallback(r *http.Request) (*Callback, error) {
	token := r.Header.Get(XenditCallbackTokenHeader)
	if p.cfg.CallbackToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(p.cfg.CallbackToken)) != 1 {
		return nil, ErrInvalidSignature
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var payload xenditCallback
	if err := json.Unmarshal(body, &payload); err != nil || payload.ExternalID == "" {
		return nil, ErrMalformedPayload
	}

	cb := &Callback{
		OrderID:   payload.ExternalID,
		PaymentID: payload.ID,
		Outcome:   xenditOutcome(payload.Status),
		RawStatus: payload.Status,
	}
	paid := payload.PaidAmount
	if paid == 0 {
		paid = payload.Amount
	}
	if paid > 0 {
		amount := models.NewMoneyFromFloat(paid)
		cb.Amount = &amount
	}
	return cb, nil
}

func (p *XenditProcessor) FetchStatus(ctx context.Context, orderID string) (*Callback, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	status, amount, id, found, err := p.api.InvoiceByExternalID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Callback{OrderID: orderID, Outcome: OutcomePending}, nil
	}
	money := models.NewMoneyFromFloat(amount)
	return &Callback{
		OrderID:   orderID,
		PaymentID: id,
		Outcome:   xenditOutcome(status),
		Amount:    &money,
		RawStatus: status,
	}, nil
}

func xenditOutcome(status string) Outcome {
	switch strings.ToUpper(status) {
	case "PAID", "SETTLED":
		return OutcomeApproved
	case "EXPIRED":
		return OutcomeRejected
	default:
		return OutcomePending
	}
}
